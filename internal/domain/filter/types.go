// Package filter describes listing filters as plain data.
package filter

import (
	"sellerdesk/internal/core/apperror"
)

// ComparisonType is the operator of a single filter row.
type ComparisonType string

const (
	Equal          ComparisonType = "eq"
	NotEqual       ComparisonType = "neq"
	Less           ComparisonType = "lt"
	LessOrEqual    ComparisonType = "lte"
	Greater        ComparisonType = "gt"
	GreaterOrEqual ComparisonType = "gte"
	InList         ComparisonType = "in"
	NotInList      ComparisonType = "nin"
	Contains       ComparisonType = "contains"  // ILIKE %val%
	NotContains    ComparisonType = "ncontains" // NOT ILIKE %val%

	IsNull    ComparisonType = "null"
	IsNotNull ComparisonType = "not_null"
)

// IsValid reports whether c is a known operator.
func (c ComparisonType) IsValid() bool {
	switch c {
	case Equal, NotEqual, Less, LessOrEqual, Greater, GreaterOrEqual,
		InList, NotInList, Contains, NotContains, IsNull, IsNotNull:
		return true
	}
	return false
}

// NeedsValue reports whether the operator takes an operand.
func (c ComparisonType) NeedsValue() bool {
	return c != IsNull && c != IsNotNull
}

// Item is one filter row.
type Item struct {
	Field    string         `json:"field"`    // column name or attributes.<key>
	Operator ComparisonType `json:"operator"`
	Value    any            `json:"value"` // string, number, bool or list
}

// Validate checks the row shape. Column names are checked by the repository.
func (i Item) Validate() error {
	if i.Field == "" {
		return apperror.NewValidation("filter field is required")
	}
	if !i.Operator.IsValid() {
		return apperror.NewValidation("unknown filter operator").
			WithDetail("field", i.Field).
			WithDetail("operator", i.Operator)
	}
	if i.Operator.NeedsValue() && i.Value == nil {
		return apperror.NewValidation("filter value is required").
			WithDetail("field", i.Field).
			WithDetail("operator", i.Operator)
	}
	return nil
}
