package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Canonical fixed field names.
const (
	FieldIDType    = "id_type"
	FieldIDValue   = "id_value"
	FieldProduct   = "product"
	FieldIsActive  = "is_active"
	FieldValidFrom = "valid_from"
	FieldValidTo   = "valid_to"
)

// DefaultProduct fills an empty or missing product cell.
const DefaultProduct = "all"

// DateLayout is the canonical rendering of date values.
const DateLayout = "2006-01-02"

// Table is a parsed tabular source: one header row followed by data rows.
type Table struct {
	Header     []string
	Rows       [][]string
	HeaderLine int // 1-indexed line of the header in the source (default 1)
}

// RawRow is an ordered mapping from source column name to raw cell value.
// It exists only while one source file is processed.
type RawRow struct {
	Line    int // spreadsheet line number, header is line 1
	Columns []string
	Cells   []string
}

// Get returns the cell for column, reporting whether the column exists.
// Short rows read as empty cells.
func (r RawRow) Get(column string) (string, bool) {
	for i, c := range r.Columns {
		if c == column {
			if i < len(r.Cells) {
				return r.Cells[i], true
			}
			return "", true
		}
	}
	return "", false
}

// Map returns the row as a column -> value map for diagnostic reports.
func (r RawRow) Map() map[string]string {
	m := make(map[string]string, len(r.Columns))
	for i, c := range r.Columns {
		if i < len(r.Cells) {
			m[c] = r.Cells[i]
		} else {
			m[c] = ""
		}
	}
	return m
}

// BusinessKey identifies a logical entity across versions.
type BusinessKey struct {
	IDType  string `json:"id_type"`
	IDValue string `json:"id_value"`
	Product string `json:"product"`
}

// String renders the key as "id_type|id_value|product".
func (k BusinessKey) String() string {
	return k.IDType + "|" + k.IDValue + "|" + k.Product
}

// Date is a calendar date stored in descriptive data.
type Date struct {
	time.Time
}

// MarshalJSON renders the date as YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(DateLayout))
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// Descriptive is the open-ended, schema-validated attribute bag of a record.
// Values are bool, float64, int64, string or Date.
type Descriptive map[string]any

// Clone returns a shallow copy. Values are immutable scalars.
func (d Descriptive) Clone() Descriptive {
	out := make(Descriptive, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Keys returns the attribute names sorted.
func (d Descriptive) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CanonicalRecord is the validated, versioned output unit.
// Once emitted it is never mutated; new information produces a new record.
type CanonicalRecord struct {
	ID          string      `json:"id,omitempty"`
	IDType      string      `json:"id_type"`
	IDValue     string      `json:"id_value"`
	Product     string      `json:"product"`
	IsActive    string      `json:"is_active"`
	ValidFrom   time.Time   `json:"valid_from"`
	ValidTo     time.Time   `json:"valid_to"`
	Descriptive Descriptive `json:"descriptive"`
	Version     time.Time   `json:"version"`
	Author      string      `json:"author,omitempty"`
}

// Key returns the record's business key.
func (r CanonicalRecord) Key() BusinessKey {
	return BusinessKey{IDType: r.IDType, IDValue: r.IDValue, Product: r.Product}
}

// Clone returns a copy that shares no mutable state with r.
func (r CanonicalRecord) Clone() CanonicalRecord {
	r.Descriptive = r.Descriptive.Clone()
	return r
}

// TypeTag is the declared type of a descriptive key.
type TypeTag string

const (
	TypeBoolean TypeTag = "boolean"
	TypeFloat   TypeTag = "float"
	TypeInteger TypeTag = "integer"
	TypeString  TypeTag = "string"
	TypeDate    TypeTag = "date"
)

// ParseTypeTag validates a type tag from a schema document.
func ParseTypeTag(s string) (TypeTag, error) {
	switch tag := TypeTag(strings.ToLower(strings.TrimSpace(s))); tag {
	case TypeBoolean, TypeFloat, TypeInteger, TypeString, TypeDate:
		return tag, nil
	default:
		return "", fmt.Errorf("unknown type tag %q", s)
	}
}

// DescriptiveSchema is an immutable snapshot mapping descriptive keys to
// their declared types. It is fetched once per batch.
type DescriptiveSchema struct {
	types map[string]TypeTag
}

// NewDescriptiveSchema builds a snapshot from raw key -> tag pairs.
// Every tag must be one of the known type tags.
func NewDescriptiveSchema(raw map[string]string) (DescriptiveSchema, error) {
	types := make(map[string]TypeTag, len(raw))
	var bad []string
	for key, tag := range raw {
		t, err := ParseTypeTag(tag)
		if err != nil {
			bad = append(bad, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		types[key] = t
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return DescriptiveSchema{}, fmt.Errorf("invalid descriptive schema: %s", strings.Join(bad, "; "))
	}
	return DescriptiveSchema{types: types}, nil
}

// MustDescriptiveSchema is NewDescriptiveSchema for static tables and tests.
func MustDescriptiveSchema(raw map[string]string) DescriptiveSchema {
	s, err := NewDescriptiveSchema(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the declared type for key.
func (s DescriptiveSchema) Lookup(key string) (TypeTag, bool) {
	t, ok := s.types[key]
	return t, ok
}

// Len returns the number of declared keys.
func (s DescriptiveSchema) Len() int {
	return len(s.types)
}

// Keys returns the declared keys sorted.
func (s DescriptiveSchema) Keys() []string {
	keys := make([]string, 0, len(s.types))
	for k := range s.types {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the schema as key -> tag strings.
func (s DescriptiveSchema) Map() map[string]string {
	out := make(map[string]string, len(s.types))
	for k, t := range s.types {
		out[k] = string(t)
	}
	return out
}

// SchemaProvider fetches the descriptive schema. Static-document and
// remote-service providers are interchangeable behind this contract.
type SchemaProvider interface {
	FetchSchema(ctx context.Context) (DescriptiveSchema, error)
}

// StaticSchema is a SchemaProvider that always returns the same snapshot.
type StaticSchema DescriptiveSchema

// FetchSchema implements SchemaProvider.
func (s StaticSchema) FetchSchema(context.Context) (DescriptiveSchema, error) {
	return DescriptiveSchema(s), nil
}

// SourceFile identifies one file in the document library.
type SourceFile struct {
	ID      string // library-specific identifier (path, item id)
	Name    string
	Author  string
	Size    int64
	ModTime time.Time
}
