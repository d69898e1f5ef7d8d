// Package tx lets domain services group repository calls into one database
// transaction without importing the storage layer.
package tx

import (
	"context"
)

// Manager runs fn inside a transaction carried by the context passed to fn.
// A nested call joins the transaction already in ctx. An error returned by
// fn rolls back everything fn did.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// ReadOnly is RunInTransaction for reads. A listing page and its total
	// count come from the same transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
