package ingest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

func newTestParser(max int64) *Parser {
	return NewParser(max, logger.NewNop())
}

func TestParseCSVNormalizesShape(t *testing.T) {
	data := []byte("\ufeff Email ,Name,\n a@x.com,Ann\n\n,,\nb@x.com,Bob,extra,more\nc@x.com\n")
	table, err := newTestParser(0).Parse(data, "panel.CSV")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if strings.Join(table.Headers, "|") != "email|name" {
		t.Fatalf("unexpected headers %q", table.Headers)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("expected 3 data rows, got %d: %v", len(table.Rows), table.Rows)
	}
	if got := table.Record(0)["email"]; got != " a@x.com" {
		t.Fatalf("cell values must be kept verbatim, got %q", got)
	}
	if got := table.Record(2); got["email"] != "c@x.com" || got["name"] != "" {
		t.Fatalf("short row not padded: %v", got)
	}
	if len(table.Warnings) != 1 || table.Warnings[0].Row != 4 {
		t.Fatalf("expected one truncation warning on record 4, got %v", table.Warnings)
	}
	if table.Format != FormatCSV {
		t.Fatalf("format = %s", table.Format)
	}
}

func TestParseCSVEncodings(t *testing.T) {
	utf16 := []byte{0xFF, 0xFE}
	for _, r := range "name\nJosé\n" {
		utf16 = append(utf16, byte(r), 0x00)
	}
	cases := map[string][]byte{
		"utf16le": utf16,
		"cp1252":  []byte("name\nJos\xe9\n"),
		"utf8":    []byte("name\nJosé\n"),
	}
	for name, data := range cases {
		table, err := newTestParser(0).Parse(data, "csv")
		if err != nil {
			t.Fatalf("%s: Parse: %v", name, err)
		}
		if got := table.Record(0)["name"]; got != "José" {
			t.Fatalf("%s: got %q", name, got)
		}
	}
}

func TestParseCSVSemicolonDelimiter(t *testing.T) {
	table, err := newTestParser(0).Parse([]byte("email;type\na@x.com;internal\n"), ".csv")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := table.Record(0)["type"]; got != "internal" {
		t.Fatalf("got %q", got)
	}
}

func TestParseErrors(t *testing.T) {
	p := newTestParser(64)
	cases := []struct {
		name string
		data []byte
		ext  string
		code types.ErrorCode
	}{
		{"unsupported", []byte("a\n1\n"), "txt", types.CodeUnsupportedFormat},
		{"too large", bytes.Repeat([]byte("a"), 65), "csv", types.CodePayloadTooLarge},
		{"empty", []byte("  \n"), "csv", types.CodeEmptyFile},
		{"header only", []byte("email,name\n"), "csv", types.CodeEmptyFile},
		{"blank header", []byte(",,\na,b,c\n"), "csv", types.CodeMalformedFile},
		{"duplicate header", []byte("Email,email\na,b\n"), "csv", types.CodeMalformedFile},
		{"broken xlsx", []byte("not a zip"), "xlsx", types.CodeMalformedFile},
		{"broken xls", []byte("not an ole2 file"), "xls", types.CodeMalformedFile},
		{"broken xlsb", []byte("not a zip"), "xlsb", types.CodeMalformedFile},
	}
	for _, tc := range cases {
		_, err := p.Parse(tc.data, tc.ext)
		if got := types.CodeOf(err); got != tc.code {
			t.Fatalf("%s: expected %s, got %s (%v)", tc.name, tc.code, got, err)
		}
	}
}

func TestReadAllEnforcesLimit(t *testing.T) {
	p := newTestParser(10)
	if _, err := p.ReadAll(strings.NewReader(strings.Repeat("x", 11))); !types.IsCode(err, types.CodePayloadTooLarge) {
		t.Fatalf("expected payload too large, got %v", err)
	}
	data, err := p.ReadAll(strings.NewReader("0123456789"))
	if err != nil || len(data) != 10 {
		t.Fatalf("exact-limit read failed: %v", err)
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Email", "User Type"},
		{"a@x.com", "service"},
		{"b@x.com", 7},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	table, err := newTestParser(0).Parse(buf.Bytes(), "xlsx")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if strings.Join(table.Headers, "|") != "email|user type" {
		t.Fatalf("headers %v", table.Headers)
	}
	if got := table.Record(1)["user type"]; got != "7" {
		t.Fatalf("numbers must be coerced to strings, got %q", got)
	}
}
