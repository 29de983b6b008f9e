package core

// DescriptiveValidator filters and type-checks descriptive candidate
// columns against a schema snapshot:
//   - key absent from the schema: dropped silently
//   - key present, value empty or a missing-value token: dropped silently
//   - key present, value non-empty: coerced to the declared type, or
//     reported as DescriptiveTypeMismatch
type DescriptiveValidator struct {
	schema DescriptiveSchema
}

// NewDescriptiveValidator binds a validator to one schema snapshot.
func NewDescriptiveValidator(schema DescriptiveSchema) *DescriptiveValidator {
	return &DescriptiveValidator{schema: schema}
}

// Validate returns the typed descriptive bag for a row's candidates.
func (v *DescriptiveValidator) Validate(row MappedRow) (Descriptive, []ValidationError) {
	out := make(Descriptive)
	var errs []ValidationError

	for _, cell := range row.Candidates {
		tag, ok := v.schema.Lookup(cell.Column)
		if !ok || IsMissing(cell.Value) {
			continue
		}

		value, ok := Coerce(cell.Value, tag)
		if !ok {
			errs = append(errs, ValidationError{
				Row:      row.Line,
				Column:   cell.Column,
				Kind:     KindDescriptiveTypeMismatch,
				Expected: string(tag),
				Value:    cell.Value,
				Raw:      row.Raw.Map(),
			})
			continue
		}
		out[cell.Column] = value
	}

	return out, errs
}
