package entity

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Attributes is a JSONB document of custom fields.
// Numbers are decoded as json.Number so decimals survive a round trip.
type Attributes map[string]any

// Scan implements sql.Scanner.
func (a *Attributes) Scan(src any) error {
	var source []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		source = v
	case string:
		source = []byte(v)
	case map[string]any:
		// pgx may hand over an already decoded jsonb value
		*a = v
		return nil
	default:
		return fmt.Errorf("unsupported type for Attributes: %T", src)
	}

	if len(source) == 0 {
		*a = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(source))
	dec.UseNumber()

	var result map[string]any
	if err := dec.Decode(&result); err != nil {
		return fmt.Errorf("decode attributes: %w", err)
	}
	*a = result
	return nil
}

// Value implements driver.Valuer.
func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// GetString returns the string under key or "".
func (a Attributes) GetString(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// GetDecimal returns the number under key with full precision, or zero.
func (a Attributes) GetDecimal(key string) decimal.Decimal {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := a[key].(type) {
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case string:
		d, err = decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v)
	default:
		return decimal.Zero
	}
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Has reports whether key is present, including null values.
func (a Attributes) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Set adds or replaces a value.
func (a *Attributes) Set(key string, value any) {
	if *a == nil {
		*a = make(Attributes)
	}
	(*a)[key] = value
}

// Clone returns a shallow copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
