package source_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/JonMunkholm/recimport/internal/core"
	"github.com/JonMunkholm/recimport/internal/source"
)

// ============================================================================
// CSV
// ============================================================================

func TestReadCSV_Comma(t *testing.T) {
	data := "Typ identyfikatora,Identyfikator,taxi\nVIN,ABC123,tak\nVIN,XYZ,nie\n"

	table, err := source.Read("cars.csv", []byte(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"Typ identyfikatora", "Identyfikator", "taxi"}, table.Header)
	assert.Equal(t, 1, table.HeaderLine)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"VIN", "ABC123", "tak"}, table.Rows[0])
}

func TestReadCSV_SemicolonAndBOM(t *testing.T) {
	data := "\xEF\xBB\xBFId;Kwota\n1;\"2,5\"\n"

	table, err := source.ReadCSV([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"Id", "Kwota"}, table.Header)
	assert.Equal(t, []string{"1", "2,5"}, table.Rows[0])
}

func TestReadCSV_Windows1250(t *testing.T) {
	encoded, err := charmap.Windows1250.NewEncoder().String("Data obowiązywania od\n2024-07-01\n")
	require.NoError(t, err)

	table, err := source.ReadCSV([]byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, []string{"Data obowiązywania od"}, table.Header)
}

func TestReadCSV_HeaderNormalisedToNFC(t *testing.T) {
	data := "Data obowia\u0328zywania od\n2024-07-01\n"

	table, err := source.ReadCSV([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, "Data obowi\u0105zywania od", table.Header[0])
}

func TestReadCSV_LeadingEmptyRows(t *testing.T) {
	data := ",,\n,,\nA,B,C\n1,2,3\n"

	table, err := source.ReadCSV([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, 3, table.HeaderLine)
	assert.Equal(t, []string{"A", "B", "C"}, table.Header)
	assert.Len(t, table.Rows, 1)
}

func TestReadCSV_RaggedRowsAndLazyQuotes(t *testing.T) {
	data := "A,B,C\n1,2\n4,5\"x,6\n"

	table, err := source.ReadCSV([]byte(data))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"1", "2"}, table.Rows[0])
	assert.Equal(t, "5\"x", table.Rows[1][1])
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := source.ReadCSV([]byte(",,\n\n"))
	assert.ErrorIs(t, err, core.ErrEmptyFile)

	_, err = source.Read("x.csv", nil)
	assert.ErrorIs(t, err, core.ErrEmptyFile)
}

func TestDecodeCSV(t *testing.T) {
	out, err := source.DecodeCSV([]byte("\xEF\xBB\xBFzażółć"))
	require.NoError(t, err)
	assert.Equal(t, "zażółć", string(out))

	// 0xB9 is "ą" in Windows-1250
	out, err = source.DecodeCSV([]byte{'a', 0xB9})
	require.NoError(t, err)
	assert.Equal(t, "aą", string(out))
}

// ============================================================================
// Dispatch
// ============================================================================

func TestRead_UnsupportedFormat(t *testing.T) {
	_, err := source.Read("notes.txt", []byte("x"))
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestSupported(t *testing.T) {
	assert.True(t, source.Supported("a.CSV"))
	assert.True(t, source.Supported("dir/b.xlsx"))
	assert.False(t, source.Supported("c.xls"))
	assert.False(t, source.Supported("c.author"))
}

// ============================================================================
// XLSX
// ============================================================================

func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	// row 1 left blank: header starts on line 2
	cells := map[string]any{
		"A2": "Typ identyfikatora", "B2": "Identyfikator", "C2": "Data obowiązywania od", "D2": "seats", "E2": "mileage",
		"A3": "VIN", "B3": "ABC123", "C3": 45474, "D3": 5, "E3": 1234.5,
	}
	for cell, v := range cells {
		require.NoError(t, f.SetCellValue(sheet, cell, v))
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "C3", "C3", dateStyle))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadXLSX(t *testing.T) {
	table, err := source.Read("cars.xlsx", buildWorkbook(t))
	require.NoError(t, err)

	assert.Equal(t, 2, table.HeaderLine)
	assert.Equal(t, []string{"Typ identyfikatora", "Identyfikator", "Data obowiązywania od", "seats", "mileage"}, table.Header)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"VIN", "ABC123", "2024-07-01", "5", "1234.5"}, table.Rows[0])
}

func TestReadXLSX_Invalid(t *testing.T) {
	_, err := source.ReadXLSX([]byte("not a zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid xlsx")
}
