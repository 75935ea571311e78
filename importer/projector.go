package importer

import (
	"sort"
	"strings"

	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/schema"
)

// Record is one raw source row: a CSV line keyed by header, or a flattened
// JSON object keyed by dotted path.
type Record map[string]interface{}

// RecordSet is the projector's output: rows aligned with Columns.
type RecordSet struct {
	Columns []string
	Rows    [][]interface{}
}

// Len returns the number of rows.
func (rs *RecordSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// Map returns row i keyed by column name.
func (rs *RecordSet) Map(i int) map[string]interface{} {
	m := make(map[string]interface{}, len(rs.Columns))
	for j, c := range rs.Columns {
		m[c] = rs.Rows[i][j]
	}
	return m
}

// Slice returns rows [from, to) sharing the underlying storage.
func (rs *RecordSet) Slice(from, to int) *RecordSet {
	return &RecordSet{Columns: rs.Columns, Rows: rs.Rows[from:to]}
}

// Stamp appends a constant column to every row.
func (rs *RecordSet) Stamp(column string, value interface{}) {
	rs.Columns = append(rs.Columns, column)
	for i := range rs.Rows {
		rs.Rows[i] = append(rs.Rows[i], value)
	}
}

// Column maps one source column to its target name.
type Column struct {
	Source string
	Target string
}

// Projection selects and renames a fixed, ordered set of source columns.
type Projection struct {
	Columns []Column
	// Strict projections also reject source columns they do not select.
	Strict bool
}

// NewProjection builds a projection keeping allowed in order, renamed with
// rename where an entry exists.
func NewProjection(allowed []string, rename map[string]string) (Projection, error) {
	seen := make(map[string]bool, len(allowed))
	cols := make([]Column, 0, len(allowed))
	for _, src := range allowed {
		target := src
		if r, ok := rename[src]; ok {
			target = r
		}
		if seen[target] {
			return Projection{}, errors.Newf(errors.ErrSchemaMismatch, "column %s selected twice", target)
		}
		seen[target] = true
		cols = append(cols, Column{Source: src, Target: target})
	}
	return Projection{Columns: cols}, nil
}

// TableProjection derives the projection of a table from its non-derived
// fields. FlattenAll tables project strictly.
func TableProjection(t schema.Table) Projection {
	p := Projection{Strict: t.FlattenAll}
	for _, f := range t.Fields {
		if f.Derived {
			continue
		}
		p.Columns = append(p.Columns, Column{Source: f.SourceName(), Target: f.Name})
	}
	return p
}

// Sources returns the source column names in order.
func (p Projection) Sources() []string {
	out := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		out[i] = c.Source
	}
	return out
}

// Targets returns the output column names in order.
func (p Projection) Targets() []string {
	out := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		out[i] = c.Target
	}
	return out
}

// Project keeps exactly the projection's columns of every record, in
// declared order, preserving row order. Records are not modified. A selected
// column missing from any record fails with SchemaMismatch.
//
// A dotted path whose parent object is explicitly null in the record
// resolves to NULL: IBGE returns null for levels that do not apply, and the
// missing children are not a change of shape.
func (p Projection) Project(records []Record) (*RecordSet, error) {
	rs := &RecordSet{Columns: p.Targets(), Rows: make([][]interface{}, 0, len(records))}
	var selected map[string]bool
	if p.Strict {
		selected = make(map[string]bool, len(p.Columns))
		for _, c := range p.Columns {
			selected[c.Source] = true
		}
	}

	for i, rec := range records {
		row := make([]interface{}, len(p.Columns))
		for j, c := range p.Columns {
			v, ok := lookup(rec, c.Source)
			if !ok {
				return nil, errors.Newf(errors.ErrSchemaMismatch, "record %d: column %s not found", i, c.Source)
			}
			row[j] = v
		}
		if p.Strict {
			if extra := unselected(rec, selected); len(extra) > 0 {
				return nil, errors.Newf(errors.ErrSchemaMismatch, "record %d: unexpected columns %s", i, strings.Join(extra, ", "))
			}
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, nil
}

func lookup(rec Record, path string) (interface{}, bool) {
	if v, ok := rec[path]; ok {
		return v, true
	}
	for i := strings.LastIndexByte(path, '.'); i > 0; i = strings.LastIndexByte(path[:i], '.') {
		if v, ok := rec[path[:i]]; ok {
			return nil, v == nil
		}
	}
	return nil, false
}

// unselected lists record keys outside selected, ignoring null parents of
// selected paths.
func unselected(rec Record, selected map[string]bool) []string {
	var extra []string
	for k, v := range rec {
		if selected[k] {
			continue
		}
		if v == nil && parentOfSelected(k, selected) {
			continue
		}
		extra = append(extra, k)
	}
	sort.Strings(extra)
	return extra
}

func parentOfSelected(prefix string, selected map[string]bool) bool {
	for s := range selected {
		if strings.HasPrefix(s, prefix+".") {
			return true
		}
	}
	return false
}

// boundProjection is a projection resolved against a CSV header.
type boundProjection struct {
	columns []string
	index   []int
}

// bind resolves the projection against a header row. A missing column fails
// with SchemaMismatch.
func (p Projection) bind(header []string) (*boundProjection, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	b := &boundProjection{columns: p.Targets(), index: make([]int, len(p.Columns))}
	var missing []string
	for j, c := range p.Columns {
		i, ok := pos[c.Source]
		if !ok {
			missing = append(missing, c.Source)
			continue
		}
		b.index[j] = i
	}
	if len(missing) > 0 {
		return nil, errors.Newf(errors.ErrSchemaMismatch, "columns not found in header: %s", strings.Join(missing, ", "))
	}
	return b, nil
}

// row projects one CSV line. The returned slice has room for stamped
// columns.
func (b *boundProjection) row(fields []string, extra int) []interface{} {
	out := make([]interface{}, len(b.index), len(b.index)+extra)
	for j, i := range b.index {
		out[j] = fields[i]
	}
	return out
}
