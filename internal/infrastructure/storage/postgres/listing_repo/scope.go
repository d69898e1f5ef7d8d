package listing_repo

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"sellerdesk/internal/core/apperror"
	"sellerdesk/internal/domain/filter"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/domain/selection"
)

type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindNumeric
)

// filterable is the whitelist of columns a scope may reference.
var filterable = map[string]columnKind{
	"id":          kindText,
	"marketplace": kindText,
	"sku":         kindText,
	"title":       kindText,
	"status":      kindText,
	"currency":    kindText,
	"sync_status": kindText,
	"sync_error":  kindText,
	"stock":       kindInt,
	"price":       kindNumeric,
}

// attributePrefix addresses a key of the attributes JSONB column,
// e.g. "attributes.brand".
const attributePrefix = "attributes."

var attributeKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// column resolves a scope field to a SQL expression. Attribute values are
// compared as text, or as numeric for range operators.
func column(field string, op filter.ComparisonType) (string, columnKind, error) {
	if key, ok := strings.CutPrefix(field, attributePrefix); ok {
		if !attributeKey.MatchString(key) {
			return "", 0, apperror.NewValidation("invalid attribute name").WithDetail("field", field)
		}
		expr := "attributes->>'" + key + "'"
		switch op {
		case filter.Less, filter.LessOrEqual, filter.Greater, filter.GreaterOrEqual:
			return "(" + expr + ")::numeric", kindNumeric, nil
		}
		return expr, kindText, nil
	}
	kind, ok := filterable[field]
	if !ok {
		return "", 0, apperror.NewValidation("unknown filter field").WithDetail("field", field)
	}
	return field, kind, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(v any) string {
	return "%" + likeEscaper.Replace(fmt.Sprint(v)) + "%"
}

// operand converts a decoded JSON value to what the column expects.
func operand(field string, kind columnKind, v any) (any, error) {
	if kind == kindText {
		return v, nil
	}
	d, err := decimal.NewFromString(fmt.Sprint(v))
	if err != nil {
		return nil, apperror.NewValidation("filter value must be a number").
			WithDetail("field", field).
			WithDetail("value", v)
	}
	if kind == kindInt {
		return d.IntPart(), nil
	}
	return d, nil
}

func operandList(field string, kind columnKind, v any) ([]any, error) {
	var raw []any
	switch list := v.(type) {
	case []any:
		raw = list
	case []string:
		for _, s := range list {
			raw = append(raw, s)
		}
	default:
		raw = []any{v}
	}
	out := make([]any, 0, len(raw))
	for _, item := range raw {
		val, err := operand(field, kind, item)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

// scopeCondition translates a scope to a WHERE condition. Unknown columns
// and malformed attribute names are rejected.
func scopeCondition(scope filter.Scope) (squirrel.And, error) {
	cond := squirrel.And{}

	if q := strings.TrimSpace(scope.Search); q != "" {
		pattern := likePattern(q)
		cond = append(cond, squirrel.Or{
			squirrel.ILike{"title": pattern},
			squirrel.ILike{"sku": pattern},
		})
	}

	for _, item := range scope.Items {
		col, kind, err := column(item.Field, item.Operator)
		if err != nil {
			return nil, err
		}

		switch item.Operator {
		case filter.IsNull:
			cond = append(cond, squirrel.Eq{col: nil})
			continue
		case filter.IsNotNull:
			cond = append(cond, squirrel.NotEq{col: nil})
			continue
		case filter.Contains:
			cond = append(cond, squirrel.ILike{col: likePattern(item.Value)})
			continue
		case filter.NotContains:
			cond = append(cond, squirrel.NotILike{col: likePattern(item.Value)})
			continue
		case filter.InList, filter.NotInList:
			vals, err := operandList(item.Field, kind, item.Value)
			if err != nil {
				return nil, err
			}
			if item.Operator == filter.InList {
				cond = append(cond, squirrel.Eq{col: vals})
			} else {
				cond = append(cond, squirrel.NotEq{col: vals})
			}
			continue
		}

		val, err := operand(item.Field, kind, item.Value)
		if err != nil {
			return nil, err
		}
		switch item.Operator {
		case filter.Equal:
			cond = append(cond, squirrel.Eq{col: val})
		case filter.NotEqual:
			cond = append(cond, squirrel.NotEq{col: val})
		case filter.Less:
			cond = append(cond, squirrel.Lt{col: val})
		case filter.LessOrEqual:
			cond = append(cond, squirrel.LtOrEq{col: val})
		case filter.Greater:
			cond = append(cond, squirrel.Gt{col: val})
		case filter.GreaterOrEqual:
			cond = append(cond, squirrel.GtOrEq{col: val})
		default:
			return nil, apperror.NewValidation("unknown filter operator").
				WithDetail("field", item.Field).
				WithDetail("operator", item.Operator)
		}
	}
	return cond, nil
}

// targetCondition is the WHERE condition of a bulk target: the explicit ids
// of a manual selection, or the scope minus the exclusions.
func targetCondition(sellerID string, t listing.Target) (squirrel.Sqlizer, error) {
	cond := squirrel.And{squirrel.Eq{"seller_id": sellerID}}

	switch t.Mode {
	case selection.ModeManual:
		cond = append(cond, squirrel.Eq{"id": t.IDs})
	case selection.ModeAllFiltered:
		if t.Filter == nil {
			return nil, apperror.NewValidation("all-filtered target without a scope")
		}
		scope, err := scopeCondition(*t.Filter)
		if err != nil {
			return nil, err
		}
		cond = append(cond, scope...)
		if len(t.ExcludedIDs) > 0 {
			cond = append(cond, squirrel.NotEq{"id": t.ExcludedIDs})
		}
	default:
		return nil, apperror.NewEmptySelection("resolve")
	}
	return cond, nil
}
