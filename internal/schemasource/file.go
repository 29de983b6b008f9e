package schemasource

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/JonMunkholm/recimport/internal/core"
)

// File reads the schema from a YAML or JSON document mapping each
// descriptive key to its type tag:
//
//	taxi: boolean
//	seats: integer
//
// The document is re-read on every fetch, so edits apply from the next batch.
type File struct {
	path string
}

// NewFile returns a provider reading path.
func NewFile(path string) *File {
	return &File{path: path}
}

// FetchSchema implements core.SchemaProvider.
func (f *File) FetchSchema(ctx context.Context) (core.DescriptiveSchema, error) {
	if err := ctx.Err(); err != nil {
		return core.DescriptiveSchema{}, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return core.DescriptiveSchema{}, fmt.Errorf("%w: read %s: %w", core.ErrSchemaUnavailable, f.path, err)
	}
	return Parse(data)
}

// Parse decodes a schema document.
func Parse(data []byte) (core.DescriptiveSchema, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return core.DescriptiveSchema{}, fmt.Errorf("%w: decode schema document: %w", core.ErrSchemaUnavailable, err)
	}
	schema, err := core.NewDescriptiveSchema(raw)
	if err != nil {
		return core.DescriptiveSchema{}, fmt.Errorf("%w: %w", core.ErrSchemaUnavailable, err)
	}
	return schema, nil
}
