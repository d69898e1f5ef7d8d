package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Scope is the full filter of a listing view: free-text search plus rows.
// A bulk selection captures it verbatim.
type Scope struct {
	Search string `json:"search,omitempty"`
	Items  []Item `json:"items,omitempty"`
}

// Normalize trims the search string. Row order is kept as given.
func (s Scope) Normalize() Scope {
	s.Search = strings.TrimSpace(s.Search)
	return s
}

// Validate checks every row.
func (s Scope) Validate() error {
	for _, item := range s.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IsEmpty reports whether the scope matches everything.
func (s Scope) IsEmpty() bool {
	return strings.TrimSpace(s.Search) == "" && len(s.Items) == 0
}

func (s Scope) canonical() []byte {
	n := s.Normalize()
	if n.Items == nil {
		n.Items = []Item{}
	}
	// json.Marshal sorts map keys, which is enough for operand values.
	data, err := json.Marshal(n)
	if err != nil {
		return []byte(n.Search)
	}
	return data
}

// SameScope compares two scopes by their normalized JSON form.
func SameScope(a, b Scope) bool {
	return string(a.canonical()) == string(b.canonical())
}

// Fingerprint returns a short stable hash of the scope.
func (s Scope) Fingerprint() string {
	sum := sha256.Sum256(s.canonical())
	return hex.EncodeToString(sum[:8])
}
