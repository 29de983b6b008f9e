package core

// mapper.go translates source header names to canonical field names.
//
// Mapping is exact: case, whitespace and accents in the source header must
// match the table. Canonical names always map to themselves so that running
// the mapper over its own output changes nothing.

// Cell is one source column and its raw value.
type Cell struct {
	Column string
	Value  string
}

// MappedRow is a RawRow split into canonical fixed fields and
// descriptive candidates (every unmapped column, in source order).
type MappedRow struct {
	Line       int
	Fixed      map[string]string
	Candidates []Cell
	Raw        RawRow
}

// ColumnMapper applies a static source-name -> canonical-name table.
type ColumnMapper struct {
	mapping map[string]string
}

// NewColumnMapper builds a mapper from the mapping table. Every target
// name in the table, and every name in canonical, maps to itself.
func NewColumnMapper(mapping map[string]string, canonical ...string) *ColumnMapper {
	m := make(map[string]string, len(mapping)*2)
	for _, target := range mapping {
		m[target] = target
	}
	for _, name := range canonical {
		m[name] = name
	}
	for source, target := range mapping {
		m[source] = target
	}
	return &ColumnMapper{mapping: m}
}

// Canonical returns the canonical name for a source header.
func (m *ColumnMapper) Canonical(header string) (string, bool) {
	name, ok := m.mapping[header]
	return name, ok
}

// MapHeader returns the set of canonical fixed fields present in a header.
func (m *ColumnMapper) MapHeader(header []string) map[string]bool {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		if name, ok := m.mapping[h]; ok {
			present[name] = true
		}
	}
	return present
}

// MapRow splits a row into canonical fixed values and descriptive candidates.
// When two source columns map to the same canonical field, the first
// non-empty value wins. No error is raised for absent fixed columns.
func (m *ColumnMapper) MapRow(row RawRow) MappedRow {
	out := MappedRow{
		Line:  row.Line,
		Fixed: make(map[string]string),
		Raw:   row,
	}
	for i, col := range row.Columns {
		var value string
		if i < len(row.Cells) {
			value = row.Cells[i]
		}
		name, ok := m.mapping[col]
		if !ok {
			out.Candidates = append(out.Candidates, Cell{Column: col, Value: value})
			continue
		}
		if prev, seen := out.Fixed[name]; seen && CleanCell(prev) != "" {
			continue
		}
		out.Fixed[name] = value
	}
	return out
}

// Row reassembles a MappedRow into a RawRow using canonical names.
func (r MappedRow) Row(order []string) RawRow {
	row := RawRow{Line: r.Line}
	for _, name := range order {
		if v, ok := r.Fixed[name]; ok {
			row.Columns = append(row.Columns, name)
			row.Cells = append(row.Cells, v)
		}
	}
	for _, c := range r.Candidates {
		row.Columns = append(row.Columns, c.Column)
		row.Cells = append(row.Cells, c.Value)
	}
	return row
}
