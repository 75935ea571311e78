package models

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/schema"
)

// FieldErrors maps a column name to the problems found with its value.
type FieldErrors map[string][]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + strings.Join(fe[k], ", ")
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (fe FieldErrors) add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// rule holds the request-level constraints of a column on top of its
// schema type.
type rule struct {
	required bool
	minLen   int
	exactLen int
	upper    bool
}

var rules = map[string]rule{
	schema.ColEntidadeCodigo: {required: true},
	schema.ColEntidadeNome:   {required: true, minLen: 3},
	schema.ColMunicipioNome:  {required: true},
	schema.ColUFCodigo:       {required: true},
	schema.ColUFNome:         {required: true},
	schema.ColUFSigla:        {required: true, exactLen: 2, upper: true},
	schema.ColAno:            {required: true},
}

// defaults are applied to a full record when the column is absent.
var defaults = map[string]interface{}{
	"QT_MAT_INF":  int64(0),
	"QT_MAT_FUND": int64(0),
}

// DecodeInstituicao validates a complete record, as sent to create one.
// Unknown columns, missing required columns and values of the wrong type are
// reported together as a ValidationError wrapping FieldErrors.
func DecodeInstituicao(r io.Reader) (*Instituicao, error) {
	values, fe, err := decodeColumns(r)
	if err != nil {
		return nil, err
	}
	for _, f := range schema.Instituicoes.Fields {
		if _, ok := values[f.Name]; ok {
			continue
		}
		if rules[f.Name].required {
			fe.add(f.Name, "Missing data for required field.")
			continue
		}
		if d, ok := defaults[f.Name]; ok {
			values[f.Name] = d
		}
	}
	if len(fe) > 0 {
		return nil, errors.WithCode(fe, errors.ErrValidation, "invalid instituicao")
	}

	inst := &Instituicao{}
	for col, v := range values {
		if err := inst.Set(col, v); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// InstituicaoPatch is a sparse update: only the supplied columns change.
type InstituicaoPatch struct {
	values map[string]interface{}
}

// DecodeInstituicaoPatch validates a partial record. Supplied columns follow
// the same rules as DecodeInstituicao; absent columns are left untouched.
func DecodeInstituicaoPatch(r io.Reader) (InstituicaoPatch, error) {
	values, fe, err := decodeColumns(r)
	if err != nil {
		return InstituicaoPatch{}, err
	}
	if len(fe) > 0 {
		return InstituicaoPatch{}, errors.WithCode(fe, errors.ErrValidation, "invalid instituicao")
	}
	return InstituicaoPatch{values: values}, nil
}

// Columns returns the patched columns in schema order.
func (p InstituicaoPatch) Columns() []string {
	var cols []string
	for _, c := range schema.Instituicoes.Columns() {
		if _, ok := p.values[c]; ok {
			cols = append(cols, c)
		}
	}
	return cols
}

// Value returns the coerced value supplied for col.
func (p InstituicaoPatch) Value(col string) (interface{}, bool) {
	v, ok := p.values[col]
	return v, ok
}

// Empty reports whether the patch changes nothing.
func (p InstituicaoPatch) Empty() bool {
	return len(p.values) == 0
}

// Apply writes the patched columns into inst.
func (p InstituicaoPatch) Apply(inst *Instituicao) error {
	for _, col := range p.Columns() {
		if err := inst.Set(col, p.values[col]); err != nil {
			return err
		}
	}
	return nil
}

// decodeColumns reads a JSON object and coerces every member with its
// schema field. Bad members are collected in FieldErrors; a body that is not
// a JSON object is returned as err.
func decodeColumns(r io.Reader) (map[string]interface{}, FieldErrors, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.WithCode(err, errors.ErrBadRequest, "reading body")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		fe := FieldErrors{"_schema": {"Invalid input type."}}
		return nil, nil, errors.WithCode(fe, errors.ErrValidation, "body must be a JSON object")
	}

	values := make(map[string]interface{}, len(raw))
	fe := FieldErrors{}
	for name, msg := range raw {
		f, ok := schema.Instituicoes.Field(name)
		if !ok {
			fe.add(name, "Unknown field.")
			continue
		}
		v, problem := decodeValue(f, msg)
		if problem != "" {
			fe.add(name, problem)
			continue
		}
		values[name] = v
	}
	return values, fe, nil
}

func decodeValue(f schema.Field, msg json.RawMessage) (interface{}, string) {
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, "Invalid value."
	}
	r := rules[f.Name]
	nullable := f.Nullable && !r.required
	if raw == nil {
		if !nullable {
			return nil, "Field may not be null."
		}
		return nil, ""
	}

	if f.Type == schema.Text {
		s, ok := raw.(string)
		if !ok {
			return nil, "Not a valid string."
		}
		s = strings.TrimSpace(s)
		if r.upper {
			s = strings.ToUpper(s)
		}
		n := utf8.RuneCountInString(s)
		if r.minLen > 0 && n < r.minLen {
			return nil, "Shorter than minimum length " + strconv.Itoa(r.minLen) + "."
		}
		if r.exactLen > 0 && n != r.exactLen {
			return nil, "Length must be " + strconv.Itoa(r.exactLen) + "."
		}
		if r.required && s == "" {
			return nil, "Field may not be blank."
		}
		return s, ""
	}

	switch raw.(type) {
	case json.Number, string:
	default:
		return nil, "Not a valid integer."
	}
	v, err := f.Coerce(raw)
	if err != nil {
		return nil, "Not a valid integer."
	}
	if v == nil {
		if !nullable {
			return nil, "Field may not be null."
		}
		return nil, ""
	}
	if f.NonNegative && v.(int64) < 0 {
		return nil, "Must be greater than or equal to 0."
	}
	return v, ""
}
