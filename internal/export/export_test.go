package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testTable() *Table {
	note := "strong portfolio"
	return &Table{
		Title: "Backend Engineer",
		Columns: []Column{
			{Key: "id", Label: "Application ID"},
			{Key: "status", Label: "Status"},
			{Key: "note", Label: "Note"},
			{Key: "updated_at", Label: "Updated"},
		},
		Rows: []map[string]interface{}{
			{
				"id":         uuid.MustParse("6f1c2a34-5b6d-4e7f-8a9b-0c1d2e3f4a5b"),
				"status":     "SHORTLISTED",
				"note":       &note,
				"updated_at": time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
			},
			{
				"id":     uuid.MustParse("0b9d8c7a-6e5f-4a3b-9c2d-1e0f9a8b7c6d"),
				"status": "APPLIED",
				"note":   (*string)(nil),
			},
		},
		GeneratedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"":      FormatCSV,
		"CSV":   FormatCSV,
		"xlsx":  FormatExcel,
		"excel": FormatExcel,
		" pdf ": FormatPDF,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("json")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, testTable()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Application ID,Status,Note,Updated", lines[0])
	assert.Equal(t, "6f1c2a34-5b6d-4e7f-8a9b-0c1d2e3f4a5b,SHORTLISTED,strong portfolio,2026-03-14T09:30:00Z", lines[1])
	assert.Equal(t, "0b9d8c7a-6e5f-4a3b-9c2d-1e0f9a8b7c6d,APPLIED,,", lines[2])
}

func TestWriteCSVEscapesFormulas(t *testing.T) {
	note := "=HYPERLINK(\"http://evil.example\",\"cv\")"
	table := &Table{
		Title:   "Backend Engineer",
		Columns: []Column{{Key: "note", Label: "Note"}, {Key: "other", Label: "Other"}},
		Rows: []map[string]interface{}{
			{"note": &note, "other": "@SUM(A1)"},
			{"note": "-2+3", "other": "plain"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, table))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"'=HYPERLINK(""http://evil.example"",""cv"")",'@SUM(A1)`, lines[1])
	assert.Equal(t, "'-2+3,plain", lines[2])
}

func TestWriteExcel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatExcel, testTable()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Backend Engineer")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Application ID", "Status", "Note", "Updated"}, rows[0])
	assert.Equal(t, "SHORTLISTED", rows[1][1])
	assert.Equal(t, "strong portfolio", rows[1][2])
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatPDF, testTable()))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestPDFPaginatesLongPipelines(t *testing.T) {
	table := testTable()
	for i := 0; i < 200; i++ {
		table.Rows = append(table.Rows, map[string]interface{}{"id": uuid.New(), "status": "VIEWED"})
	}

	g := NewPDFGenerator(DefaultPDFOptions())
	require.NoError(t, g.Generate(table))
	out, err := g.OutputToBytes()
	require.NoError(t, err)
	assert.Greater(t, g.pdf.PageNo(), 1)
	assert.NotEmpty(t, out)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Applications", sheetName("  "))
	assert.Equal(t, "QA Lead EMEA", sheetName("QA Lead [EMEA]"))
	assert.Len(t, []rune(sheetName(strings.Repeat("x", 40))), 31)
}
