package selection

import "encoding/json"

// Set is a map-backed set of identifiers.
// Sets held by a State are never mutated after the State is built.
type Set[ID comparable] map[ID]struct{}

// NewSet builds a set from the given identifiers.
func NewSet[ID comparable](ids ...ID) Set[ID] {
	s := make(Set[ID], len(ids))
	for _, v := range ids {
		s[v] = struct{}{}
	}
	return s
}

func (s Set[ID]) Add(v ID) {
	s[v] = struct{}{}
}

func (s Set[ID]) Remove(v ID) {
	delete(s, v)
}

// Has reports membership. Safe on a nil set.
func (s Set[ID]) Has(v ID) bool {
	_, ok := s[v]
	return ok
}

func (s Set[ID]) Len() int {
	return len(s)
}

// Slice returns the members in unspecified order.
func (s Set[ID]) Slice() []ID {
	out := make([]ID, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	return out
}

// Clone returns an independent copy. A nil set clones to an empty set.
func (s Set[ID]) Clone() Set[ID] {
	out := make(Set[ID], len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as a JSON array.
func (s Set[ID]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON decodes a JSON array into the set.
func (s *Set[ID]) UnmarshalJSON(data []byte) error {
	var ids []ID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewSet(ids...)
	return nil
}
