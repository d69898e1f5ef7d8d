// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"slices"
)

// UserContext describes the authenticated back-office user.
type UserContext struct {
	UserID      string
	SellerID    string // seller account whose listings the user manages
	Email       string
	Roles       []string
	Permissions []string
	IsAdmin     bool
	SessionID   string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// GetSellerID returns seller ID from context or empty string.
func GetSellerID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.SellerID
	}
	return ""
}

// HasPermission checks a permission. Admins pass every check.
func (u *UserContext) HasPermission(perm string) bool {
	if u == nil {
		return false
	}
	if u.IsAdmin {
		return true
	}
	return slices.Contains(u.Permissions, perm)
}
