package core

// fixed.go validates the statically-named fields every record carries.
//
// Validation happens at two levels:
//  1. Header validation: the file must contain every required column.
//     A missing column rejects the whole file before any row is read.
//  2. Row validation: each required cell must be non-empty, and date
//     columns must hold a parseable date. A bad cell rejects only its row.
//
// Fields with a Default (product) are exempt from both checks: an absent
// column or empty cell is filled with the default.

import "strings"

// StorageType is the declared storage type of a fixed field.
type StorageType string

const (
	StorageText        StorageType = "TEXT"
	StorageDate        StorageType = "DATE"
	StorageJSONB       StorageType = "JSONB"
	StorageTimestamptz StorageType = "TIMESTAMPTZ"
)

// FixedFieldSpec defines one fixed field.
type FixedFieldSpec struct {
	Name     string      // canonical name
	Type     StorageType // declared storage type
	Required bool        // must be present in the source file
	Default  string      // fills empty/missing values; exempts the field from presence checks
}

// FixedSchema is the ordered fixed-field type table.
type FixedSchema []FixedFieldSpec

// FixedFields holds the validated fixed values of one row.
type FixedFields struct {
	IDType    string
	IDValue   string
	Product   string
	IsActive  string
	ValidFrom Date
	ValidTo   Date
}

// Names returns the canonical names in table order.
func (s FixedSchema) Names() []string {
	names := make([]string, len(s))
	for i, spec := range s {
		names[i] = spec.Name
	}
	return names
}

// Sourced returns the specs read from source files: everything except
// fields the engine assigns itself (descriptive bag, version, author).
func (s FixedSchema) Sourced() FixedSchema {
	var out FixedSchema
	for _, spec := range s {
		if spec.Required || spec.Default != "" {
			out = append(out, spec)
		}
	}
	return out
}

// CheckHeader verifies that every required, non-defaulted column is present.
// present holds canonical names produced by ColumnMapper.MapHeader.
func (s FixedSchema) CheckHeader(present map[string]bool) error {
	var missing []string
	for _, spec := range s {
		if !spec.Required || spec.Default != "" {
			continue
		}
		if !present[spec.Name] {
			missing = append(missing, spec.Name)
		}
	}
	if len(missing) > 0 {
		return &StructuralError{Missing: missing}
	}
	return nil
}

// Validate checks one mapped row and returns its fixed values.
// Every problem is reported, one ValidationError per offending field.
func (s FixedSchema) Validate(row MappedRow) (FixedFields, []ValidationError) {
	values := make(map[string]string, len(s))
	dates := make(map[string]Date, 2)
	var errs []ValidationError

	for _, spec := range s.Sourced() {
		raw := CleanCell(row.Fixed[spec.Name])
		if IsMissing(raw) {
			raw = ""
		}

		if raw == "" && spec.Default != "" {
			raw = spec.Default
		}

		if raw == "" {
			errs = append(errs, ValidationError{
				Row:    row.Line,
				Column: spec.Name,
				Kind:   KindMissingFixedValue,
				Raw:    row.Raw.Map(),
			})
			continue
		}

		if spec.Type == StorageDate {
			t, ok := ParseDate(raw)
			if !ok {
				errs = append(errs, ValidationError{
					Row:      row.Line,
					Column:   spec.Name,
					Kind:     KindInvalidFixedValue,
					Expected: strings.ToLower(string(StorageDate)),
					Value:    raw,
					Raw:      row.Raw.Map(),
				})
				continue
			}
			dates[spec.Name] = Date{Time: t}
		}
		values[spec.Name] = raw
	}

	return FixedFields{
		IDType:    values[FieldIDType],
		IDValue:   values[FieldIDValue],
		Product:   values[FieldProduct],
		IsActive:  values[FieldIsActive],
		ValidFrom: dates[FieldValidFrom],
		ValidTo:   dates[FieldValidTo],
	}, errs
}
