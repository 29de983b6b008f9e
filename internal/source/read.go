// Package source turns uploaded spreadsheet bytes into core.Table values.
//
// CSV and XLSX are supported. Both readers locate the header as the first
// non-empty row and record its line so that row numbers in reports match
// what the author sees in the spreadsheet.
package source

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/JonMunkholm/recimport/internal/core"
)

// Extensions lists the file extensions Read accepts, lower case.
var Extensions = []string{".csv", ".xlsx"}

// Supported reports whether name has a readable extension.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Read parses data according to the extension of name. It satisfies
// core.TableReader.
func Read(name string, data []byte) (core.Table, error) {
	if len(data) == 0 {
		return core.Table{}, core.ErrEmptyFile
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ReadCSV(data)
	case ".xlsx":
		return ReadXLSX(data)
	default:
		return core.Table{}, fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// tableFromRecords picks the header and data rows out of raw records.
func tableFromRecords(records [][]string) (core.Table, error) {
	idx := firstNonEmpty(records)
	if idx < 0 {
		return core.Table{}, core.ErrEmptyFile
	}

	header := make([]string, len(records[idx]))
	for i, h := range records[idx] {
		header[i] = norm.NFC.String(h)
	}

	return core.Table{
		Header:     header,
		Rows:       records[idx+1:],
		HeaderLine: idx + 1,
	}, nil
}

func firstNonEmpty(records [][]string) int {
	for i, rec := range records {
		for _, cell := range rec {
			if strings.TrimSpace(cell) != "" {
				return i
			}
		}
	}
	return -1
}
