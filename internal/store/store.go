// Package store provides core.VersionStore implementations.
//
// Memory keeps chains in process and serves dry runs and tests. Postgres
// appends rows to the records table and serializes writers of the same
// business key with a transaction-scoped advisory lock.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/recimport/internal/core"
)

// encodeDescriptive renders a bag as JSON, never null.
func encodeDescriptive(d core.Descriptive) ([]byte, error) {
	if d == nil {
		d = core.Descriptive{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode descriptive: %w", err)
	}
	return b, nil
}

// decodeDescriptive parses a stored bag. Whole numbers come back as int64
// and other numbers as float64; dates come back in their string form.
func decodeDescriptive(data []byte) (core.Descriptive, error) {
	out := core.Descriptive{}
	if len(data) == 0 {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode descriptive: %w", err)
	}
	for k, v := range raw {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				out[k] = i
				continue
			}
			f, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("decode descriptive %s: %w", k, err)
			}
			out[k] = f
			continue
		}
		out[k] = v
	}
	return out, nil
}
