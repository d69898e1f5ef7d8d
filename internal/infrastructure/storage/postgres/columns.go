package postgres

import (
	"reflect"
	"sync"
)

// column is a db-tagged field reachable through embedded structs.
type column struct {
	name  string
	index []int
}

var columnCache sync.Map // reflect.Type -> []column

func columnsOf(t reflect.Type) []column {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]column)
	}

	var cols []column
	var walk func(t reflect.Type, prefix []int)
	walk = func(t reflect.Type, prefix []int) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			index := append(append([]int(nil), prefix...), i)
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				walk(f.Type, index)
				continue
			}
			tag := f.Tag.Get("db")
			if tag == "" || tag == "-" || !f.IsExported() {
				continue
			}
			cols = append(cols, column{name: tag, index: index})
		}
	}
	if t.Kind() == reflect.Struct {
		walk(t, nil)
	}

	columnCache.Store(t, cols)
	return cols
}

// Columns returns the db column names of T in field order, embedded
// structs first where they are declared first.
func Columns[T any]() []string {
	cols := columnsOf(reflect.TypeFor[T]())
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// ColumnValues returns the column names of v and their values in the same order.
func ColumnValues(v any) ([]string, []any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, nil
	}

	cols := columnsOf(rv.Type())
	names := make([]string, len(cols))
	values := make([]any, len(cols))
	for i, c := range cols {
		names[i] = c.name
		values[i] = rv.FieldByIndex(c.index).Interface()
	}
	return names, values
}
