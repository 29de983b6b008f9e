// Package schema holds the static tables describing record sources: how
// business-team spreadsheet headers map to canonical fields and the
// declared storage type of each fixed field.
package schema

import "github.com/JonMunkholm/recimport/internal/core"

// RecordColumnMapping maps spreadsheet headers to canonical fixed-field
// names. Matching is exact; canonical names also map to themselves.
var RecordColumnMapping = map[string]string{
	"Typ identyfikatora":    core.FieldIDType,
	"Identyfikator":         core.FieldIDValue,
	"Produkt":               core.FieldProduct,
	"Aktywny":               core.FieldIsActive,
	"Data obowiązywania od": core.FieldValidFrom,
	"Data obowiązywania do": core.FieldValidTo,
}

// RecordFieldSpecs is the fixed-field type table. Only presence and date
// parsing are enforced at runtime; the storage types document the records
// table layout.
var RecordFieldSpecs = core.FixedSchema{
	{Name: core.FieldIDType, Type: core.StorageText, Required: true},
	{Name: core.FieldIDValue, Type: core.StorageText, Required: true},
	{Name: core.FieldProduct, Type: core.StorageText, Default: core.DefaultProduct},
	{Name: core.FieldIsActive, Type: core.StorageText, Required: true},
	{Name: core.FieldValidFrom, Type: core.StorageDate, Required: true},
	{Name: core.FieldValidTo, Type: core.StorageDate, Required: true},
	{Name: "descriptive", Type: core.StorageJSONB},
	{Name: "version", Type: core.StorageTimestamptz},
	{Name: "author", Type: core.StorageText},
}

// SourceHeader returns the spreadsheet header for a canonical field, or
// the canonical name itself when the field has no source header.
func SourceHeader(canonical string) string {
	for source, target := range RecordColumnMapping {
		if target == canonical {
			return source
		}
	}
	return canonical
}

// TemplateHeader returns the header row of a blank import template, in
// fixed-field order.
func TemplateHeader() []string {
	var header []string
	for _, spec := range RecordFieldSpecs.Sourced() {
		header = append(header, SourceHeader(spec.Name))
	}
	return header
}
