package listing_repo

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerdesk/internal/core/apperror"
	"sellerdesk/internal/core/id"
	"sellerdesk/internal/domain/filter"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/domain/selection"
)

func toSQL(t *testing.T, s squirrel.Sqlizer) (string, []any) {
	t.Helper()
	sql, args, err := s.ToSql()
	require.NoError(t, err)
	sql, err = squirrel.Dollar.ReplacePlaceholders(sql)
	require.NoError(t, err)
	return sql, args
}

func TestScopeCondition_Operators(t *testing.T) {
	tests := []struct {
		name     string
		item     filter.Item
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "equal text",
			item:     filter.Item{Field: "status", Operator: filter.Equal, Value: "active"},
			wantSQL:  "(status = $1)",
			wantArgs: []any{"active"},
		},
		{
			name:     "greater int",
			item:     filter.Item{Field: "stock", Operator: filter.Greater, Value: float64(10)},
			wantSQL:  "(stock > $1)",
			wantArgs: []any{int64(10)},
		},
		{
			name:     "less or equal numeric",
			item:     filter.Item{Field: "price", Operator: filter.LessOrEqual, Value: "99.90"},
			wantSQL:  "(price <= $1)",
			wantArgs: []any{decimal.RequireFromString("99.90")},
		},
		{
			name:     "in list",
			item:     filter.Item{Field: "marketplace", Operator: filter.InList, Value: []any{"ozon", "wb"}},
			wantSQL:  "(marketplace IN ($1,$2))",
			wantArgs: []any{"ozon", "wb"},
		},
		{
			name:     "not in list",
			item:     filter.Item{Field: "status", Operator: filter.NotInList, Value: []string{"archived"}},
			wantSQL:  "(status NOT IN ($1))",
			wantArgs: []any{"archived"},
		},
		{
			name:    "null",
			item:    filter.Item{Field: "sync_error", Operator: filter.IsNull},
			wantSQL: "(sync_error IS NULL)",
		},
		{
			name:     "contains escapes wildcards",
			item:     filter.Item{Field: "title", Operator: filter.Contains, Value: "100%_"},
			wantSQL:  "(title ILIKE $1)",
			wantArgs: []any{`%100\%\_%`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := scopeCondition(filter.Scope{Items: []filter.Item{tt.item}})
			require.NoError(t, err)

			sql, args := toSQL(t, cond)
			assert.Equal(t, tt.wantSQL, sql)
			if len(tt.wantArgs) == 0 {
				assert.Empty(t, args)
				return
			}
			require.Len(t, args, len(tt.wantArgs))
			for i := range args {
				if d, ok := tt.wantArgs[i].(decimal.Decimal); ok {
					got, err := decimal.NewFromString(fmt.Sprint(args[i]))
					require.NoError(t, err)
					assert.True(t, d.Equal(got))
					continue
				}
				assert.Equal(t, tt.wantArgs[i], args[i])
			}
		})
	}
}

func TestScopeCondition_Search(t *testing.T) {
	cond, err := scopeCondition(filter.Scope{Search: " kettle "})
	require.NoError(t, err)

	sql, args := toSQL(t, cond)
	assert.Equal(t, "((title ILIKE $1 OR sku ILIKE $2))", sql)
	assert.Equal(t, []any{"%kettle%", "%kettle%"}, args)
}

func TestScopeCondition_Rejects(t *testing.T) {
	_, err := scopeCondition(filter.Scope{Items: []filter.Item{{Field: "seller_id", Operator: filter.Equal, Value: "x"}}})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = scopeCondition(filter.Scope{Items: []filter.Item{{Field: "price", Operator: filter.Greater, Value: "cheap"}}})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestScopeCondition_Attributes(t *testing.T) {
	cond, err := scopeCondition(filter.Scope{Items: []filter.Item{
		{Field: "attributes.brand", Operator: filter.Equal, Value: "Acme"},
		{Field: "attributes.weight_kg", Operator: filter.GreaterOrEqual, Value: "1.5"},
		{Field: "price", Operator: filter.Less, Value: float64(20)},
	}})
	require.NoError(t, err)

	sql, args := toSQL(t, cond)
	assert.Equal(t, "(attributes->>'brand' = $1 AND (attributes->>'weight_kg')::numeric >= $2 AND price < $3)", sql)
	// squirrel binds decimals through driver.Valuer, so numeric operands
	// reach pgx as their text form.
	assert.Equal(t, []any{"Acme", "1.5", "20"}, args)

	_, err = scopeCondition(filter.Scope{Items: []filter.Item{
		{Field: "attributes.x'; DROP TABLE listings; --", Operator: filter.Equal, Value: "1"},
	}})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestListingRepo_ValidateScope(t *testing.T) {
	repo := &ListingRepo{}

	assert.NoError(t, repo.ValidateScope(filter.Scope{Items: []filter.Item{
		{Field: "price", Operator: filter.Greater, Value: 1},
		{Field: "attributes.brand", Operator: filter.Equal, Value: "Acme"},
	}}))

	err := repo.ValidateScope(filter.Scope{Items: []filter.Item{{Field: "bogus", Operator: filter.Equal, Value: 1}}})
	require.True(t, apperror.IsCode(err, apperror.CodeValidation))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "bogus", appErr.Details["field"])
}

func TestTargetCondition(t *testing.T) {
	a, b := id.New(), id.New()

	t.Run("manual sends ids", func(t *testing.T) {
		cond, err := targetCondition("s1", listing.Target{Mode: selection.ModeManual, IDs: []id.ID{a, b}})
		require.NoError(t, err)

		sql, args := toSQL(t, cond)
		assert.Equal(t, "(seller_id = $1 AND id IN ($2,$3))", sql)
		assert.Equal(t, []any{"s1", a, b}, args)
	})

	t.Run("all filtered sends scope and exclusions", func(t *testing.T) {
		scope := filter.Scope{Items: []filter.Item{{Field: "status", Operator: filter.Equal, Value: "active"}}}
		cond, err := targetCondition("s1", listing.Target{
			Mode:        selection.ModeAllFiltered,
			Filter:      &scope,
			ExcludedIDs: []id.ID{a},
		})
		require.NoError(t, err)

		sql, args := toSQL(t, cond)
		assert.Equal(t, "(seller_id = $1 AND status = $2 AND id NOT IN ($3))", sql)
		assert.Equal(t, []any{"s1", "active", a}, args)
	})

	t.Run("all filtered without exclusions", func(t *testing.T) {
		cond, err := targetCondition("s1", listing.Target{Mode: selection.ModeAllFiltered, Filter: &filter.Scope{}})
		require.NoError(t, err)

		sql, _ := toSQL(t, cond)
		assert.Equal(t, "(seller_id = $1)", sql)
	})

	t.Run("none is refused", func(t *testing.T) {
		_, err := targetCondition("s1", listing.Target{Mode: selection.ModeNone})
		assert.True(t, apperror.IsCode(err, apperror.CodeEmptySelection))
	})
}

func TestSetStatusQuery_OnlyAllowedTransitions(t *testing.T) {
	repo := &ListingRepo{}
	a := id.New()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	q, err := repo.setStatusQuery("s1", listing.Target{Mode: selection.ModeManual, IDs: []id.ID{a}}, listing.StatusPaused, now)
	require.NoError(t, err)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE listings SET status = $1, version = version + 1, updated_at = $2 WHERE (seller_id = $3 AND id IN ($4)) AND status IN ($5)",
		sql)
	assert.Equal(t, []any{listing.StatusPaused, now, "s1", a, listing.StatusActive}, args)
}

func TestReprocessQuery_SkipsArchived(t *testing.T) {
	repo := &ListingRepo{}
	scope := filter.Scope{}

	q, err := repo.reprocessQuery("s1", listing.Target{Mode: selection.ModeAllFiltered, Filter: &scope}, time.Now())
	require.NoError(t, err)

	sql, _, err := q.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "status <> $")
	assert.True(t, strings.HasSuffix(sql, "RETURNING id"))
}

func TestParseOrderBy(t *testing.T) {
	got, err := parseOrderBy("")
	require.NoError(t, err)
	assert.Equal(t, "updated_at DESC", got)

	got, err = parseOrderBy("-price")
	require.NoError(t, err)
	assert.Equal(t, "price DESC", got)

	got, err = parseOrderBy("sku")
	require.NoError(t, err)
	assert.Equal(t, "sku ASC", got)

	_, err = parseOrderBy("price; DROP TABLE listings")
	assert.Error(t, err)
}
