package source

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/recimport/internal/core"
)

// ReadXLSX parses the first worksheet of an Excel workbook.
//
// Cells are read raw so numbers keep full precision. Cells styled as dates
// hold a serial day number and are rendered as YYYY-MM-DD.
func ReadXLSX(data []byte) (core.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return core.Table{}, fmt.Errorf("invalid xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return core.Table{}, core.ErrEmptyFile
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return core.Table{}, fmt.Errorf("invalid xlsx: read %s: %w", sheet, err)
	}

	dates := dateStyles{f: f, seen: make(map[int]bool)}
	for r, row := range rows {
		for c, v := range row {
			if v == "" {
				continue
			}
			if s, ok := dates.render(sheet, c+1, r+1, v); ok {
				row[c] = s
			}
		}
	}
	return tableFromRecords(rows)
}

// dateStyles caches which style ids carry a date number format.
type dateStyles struct {
	f    *excelize.File
	seen map[int]bool
}

// render converts a serial date cell to YYYY-MM-DD.
func (d dateStyles) render(sheet string, col, row int, raw string) (string, bool) {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", false
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", false
	}
	styleID, err := d.f.GetCellStyle(sheet, cell)
	if err != nil || !d.isDate(styleID) {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", false
	}
	return t.Format(core.DateLayout), true
}

func (d dateStyles) isDate(styleID int) bool {
	if v, ok := d.seen[styleID]; ok {
		return v
	}
	isDate := false
	if style, err := d.f.GetStyle(styleID); err == nil && style != nil {
		isDate = dateNumFmt(style.NumFmt, style.CustomNumFmt)
	}
	d.seen[styleID] = isDate
	return isDate
}

// dateNumFmt recognises the built-in date formats and custom formats that
// contain a day or year token outside quotes and brackets.
func dateNumFmt(id int, custom *string) bool {
	switch {
	case id >= 14 && id <= 17, id == 22, id >= 27 && id <= 36, id >= 50 && id <= 58:
		return true
	}
	if custom == nil {
		return false
	}
	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range strings.ToLower(*custom) {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case !bracket:
			b.WriteRune(r)
		}
	}
	return strings.ContainsAny(b.String(), "dy")
}
