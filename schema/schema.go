// Package schema declares the tables of the census store. A Table is the
// single description of a dataset: the projector reads the source column of
// every field, the loader coerces values with the field types, migrations
// derive the DDL and the HTTP validators reuse the same fields.
package schema

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/nonsonwune/censo_db/errors"
)

// Type is the storage type of a field.
type Type int

const (
	Text Type = iota
	Integer
	BigInt
)

func (t Type) String() string {
	switch t {
	case Text:
		return "text"
	case Integer:
		return "integer"
	case BigInt:
		return "bigint"
	}
	return "unknown"
}

// Field is one column of a Table.
type Field struct {
	// Name is the column name in the store.
	Name string
	// Source is the column name (or dotted JSON path) in the external
	// source. Empty means the source uses Name.
	Source string
	Type   Type
	// Nullable fields store NULL for empty source values. Non-nullable text
	// stores the empty string instead.
	Nullable bool
	// NonNegative marks counters that can never be below zero.
	NonNegative bool
	// Derived fields are not read from the source; the adapter stamps them.
	Derived bool
}

// SourceName returns the name the field has in its external source.
func (f Field) SourceName() string {
	if f.Source != "" {
		return f.Source
	}
	return f.Name
}

// Coerce converts a raw source value into the Go value stored for f.
// Accepted inputs are strings (CSV cells), json.Number, float64 and the
// integer kinds. A nil or blank value is NULL for nullable fields, "" for
// non-nullable text and an error otherwise.
func (f Field) Coerce(v interface{}) (interface{}, error) {
	if s, ok := v.(string); ok && f.Type != Text {
		s = strings.TrimSpace(s)
		if s == "" {
			v = nil
		} else {
			v = s
		}
	}
	if v == nil {
		if f.Nullable {
			return nil, nil
		}
		if f.Type == Text {
			return "", nil
		}
		return nil, errors.Newf(errors.ErrDecode, "column %s: missing value", f.Name)
	}

	switch f.Type {
	case Text:
		return coerceText(v), nil
	case Integer, BigInt:
		n, err := coerceInt(v)
		if err != nil {
			return nil, errors.WithCodef(err, errors.ErrDecode, "column %s", f.Name)
		}
		if f.Type == Integer && (n > math.MaxInt32 || n < math.MinInt32) {
			return nil, errors.Newf(errors.ErrDecode, "column %s: %d overflows integer", f.Name, n)
		}
		return n, nil
	}
	return nil, errors.Newf(errors.ErrDecode, "column %s: unsupported type %s", f.Name, f.Type)
}

func coerceText(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func coerceInt(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, errors.Errorf("%q is not a number", x.String())
		}
		return integral(f)
	case float64:
		return integral(x)
	case string:
		if n, err := strconv.ParseInt(x, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, errors.Errorf("%q is not an integer", x)
		}
		return integral(f)
	}
	return 0, errors.Errorf("unsupported value %v (%T)", v, v)
}

// integral accepts floats such as 12.0 that some exports write for counters.
func integral(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errors.Errorf("%v is not an integer", f)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, errors.Errorf("%v overflows a 64-bit integer", f)
	}
	return int64(f), nil
}

// Table describes one relational table.
type Table struct {
	Name   string
	Fields []Field
	// Key lists the identity columns. When Unique is set the key becomes the
	// primary key, otherwise it is a plain index.
	Key    []string
	Unique bool
	// Indexes are additional non-unique indexes, one column list each.
	Indexes [][]string
	// FlattenAll tables keep every dotted path of their JSON source with '.'
	// replaced by '_'. A source column the table does not declare is a
	// schema mismatch instead of being dropped.
	FlattenAll bool
}

// Columns returns the column names in declared order.
func (t Table) Columns() []string {
	cols := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		cols[i] = f.Name
	}
	return cols
}

// Field looks a column up by name.
func (t Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks the descriptor for internal consistency.
func (t Table) Validate() error {
	if t.Name == "" {
		return errors.New(errors.ErrSchemaMismatch, "table without name")
	}
	if len(t.Fields) == 0 {
		return errors.Newf(errors.ErrSchemaMismatch, "table %s has no fields", t.Name)
	}
	names := make(map[string]bool, len(t.Fields))
	sources := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if f.Name == "" {
			return errors.Newf(errors.ErrSchemaMismatch, "table %s: field without name", t.Name)
		}
		if names[f.Name] {
			return errors.Newf(errors.ErrSchemaMismatch, "table %s: duplicate field %s", t.Name, f.Name)
		}
		names[f.Name] = true
		if f.Derived {
			continue
		}
		if sources[f.SourceName()] {
			return errors.Newf(errors.ErrSchemaMismatch, "table %s: duplicate source column %s", t.Name, f.SourceName())
		}
		sources[f.SourceName()] = true
		if t.FlattenAll && FlattenedName(f.SourceName()) != f.Name {
			return errors.Newf(errors.ErrSchemaMismatch, "table %s: field %s does not match source path %s", t.Name, f.Name, f.SourceName())
		}
	}
	for _, k := range t.Key {
		f, ok := t.Field(k)
		if !ok {
			return errors.Newf(errors.ErrSchemaMismatch, "table %s: key column %s is not a field", t.Name, k)
		}
		if f.Nullable {
			return errors.Newf(errors.ErrSchemaMismatch, "table %s: key column %s is nullable", t.Name, k)
		}
	}
	for _, idx := range t.Indexes {
		for _, c := range idx {
			if !names[c] {
				return errors.Newf(errors.ErrSchemaMismatch, "table %s: index column %s is not a field", t.Name, c)
			}
		}
	}
	return nil
}

// FlattenedName turns a dotted JSON path into a column name.
func FlattenedName(path string) string {
	return strings.ReplaceAll(path, ".", "_")
}

// Validate checks every declared table. It runs once at startup.
func Validate() error {
	for _, t := range All() {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}
