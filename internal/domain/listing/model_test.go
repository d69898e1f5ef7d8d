package listing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerdesk/internal/core/apperror"
	"sellerdesk/internal/core/id"
)

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusDraft.CanTransition(StatusActive))
	assert.True(t, StatusPaused.CanTransition(StatusActive))
	assert.False(t, StatusArchived.CanTransition(StatusActive))
	assert.False(t, StatusActive.CanTransition(StatusActive))
	assert.False(t, Status("gone").CanTransition(StatusDraft))

	assert.ElementsMatch(t, []Status{StatusDraft, StatusPaused, StatusError}, AllowedFrom(StatusActive))
	assert.ElementsMatch(t, []Status{StatusActive}, AllowedFrom(StatusPaused))
	assert.ElementsMatch(t, []Status{StatusDraft, StatusActive, StatusPaused, StatusError}, AllowedFrom(StatusArchived))
}

func TestListing_Validate(t *testing.T) {
	valid := func() *Listing {
		l := NewListing("s1", "ozon", "SKU-1", "Kettle")
		l.Price = decimal.RequireFromString("1490")
		return l
	}

	tests := []struct {
		name   string
		mutate func(l *Listing)
		code   string
	}{
		{"valid draft", func(*Listing) {}, ""},
		{"valid active", func(l *Listing) { l.Status = StatusActive }, ""},
		{"missing sku", func(l *Listing) { l.SKU = " " }, apperror.CodeValidation},
		{"unknown status", func(l *Listing) { l.Status = "hidden" }, apperror.CodeValidation},
		{"negative price", func(l *Listing) { l.Price = decimal.NewFromInt(-1) }, apperror.CodeValidation},
		{"negative stock", func(l *Listing) { l.Stock = -5 }, apperror.CodeValidation},
		{"bad currency", func(l *Listing) { l.Currency = "RUBL" }, apperror.CodeValidation},
		{"active without price", func(l *Listing) {
			l.Status = StatusActive
			l.Price = decimal.Zero
		}, apperror.CodeBusinessRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := valid()
			tt.mutate(l)
			err := l.Validate(context.Background())
			if tt.code == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperror.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestNewListing_Defaults(t *testing.T) {
	l := NewListing("s1", "wb", "A-1", "Mug")

	assert.False(t, id.IsNil(l.ID))
	assert.Equal(t, StatusDraft, l.Status)
	assert.Equal(t, SyncPending, l.SyncStatus)
	assert.Equal(t, "RUB", l.Currency)
	assert.True(t, l.Price.IsZero())
}
