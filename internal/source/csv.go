package source

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/JonMunkholm/recimport/internal/core"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeCSV returns data as UTF-8. A leading BOM is dropped. Input that is
// not valid UTF-8 is treated as Windows-1250, the encoding Excel uses for
// Polish CSV exports.
func DecodeCSV(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	out, err := charmap.Windows1250.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode cp1250: %w", err)
	}
	return out, nil
}

// ReadCSV parses a comma or semicolon separated file.
func ReadCSV(data []byte) (core.Table, error) {
	text, err := DecodeCSV(data)
	if err != nil {
		return core.Table{}, fmt.Errorf("invalid csv: %w", err)
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = detectDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return core.Table{}, fmt.Errorf("invalid csv: %w", err)
	}
	return tableFromRecords(records)
}

// detectDelimiter compares separators on the first non-blank line, outside
// quotes. Ties go to the comma.
func detectDelimiter(text []byte) rune {
	var line []byte
	for len(text) > 0 {
		i := bytes.IndexByte(text, '\n')
		if i < 0 {
			line, text = text, nil
		} else {
			line, text = text[:i], text[i+1:]
		}
		if len(bytes.TrimSpace(line)) > 0 {
			break
		}
	}

	commas, semis := 0, 0
	quoted := false
	for _, b := range line {
		switch b {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				commas++
			}
		case ';':
			if !quoted {
				semis++
			}
		}
	}
	if semis > commas {
		return ';'
	}
	return ','
}
