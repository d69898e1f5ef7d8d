// Package entity provides base types for domain entities.
package entity

import (
	"context"
	"time"

	"sellerdesk/internal/core/id"
)

// Validatable is implemented by entities that check their own invariants
// without touching the database.
type Validatable interface {
	Validate(ctx context.Context) error
}

// BaseEntity holds the columns every stored entity has.
type BaseEntity struct {
	ID id.ID `db:"id" json:"id"`

	// Version is bumped on every update (optimistic locking)
	Version int `db:"version" json:"version"`

	// Attributes stores marketplace-specific fields (JSONB)
	Attributes Attributes `db:"attributes" json:"attributes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewBaseEntity creates a BaseEntity with a fresh UUIDv7.
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:        id.New(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch bumps the version and the update timestamp.
func (b *BaseEntity) Touch() {
	b.Version++
	b.UpdatedAt = time.Now().UTC()
}

// SetAttribute sets a custom field.
func (b *BaseEntity) SetAttribute(key string, value any) {
	b.Attributes.Set(key, value)
}
