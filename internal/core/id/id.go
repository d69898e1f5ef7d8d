// Package id provides UUIDv7 identifiers for stored entities.
// UUIDv7 embeds a millisecond timestamp, so ids sort by creation time.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is the identifier type of every entity.
type ID = uuid.UUID

// New generates a UUIDv7, falling back to V4 if the clock source fails.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// ParseList parses every string, reporting the first invalid one.
func ParseList(ss []string) ([]ID, error) {
	out := make([]ID, 0, len(ss))
	for i, s := range ss {
		v, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("id #%d %q: %w", i, s, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// MustParse converts string to ID and panics on error. Tests and constants only.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns the zero ID.
func Nil() ID {
	return uuid.Nil
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
