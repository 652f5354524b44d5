package ingest

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

// DefaultMaxBytes is the upload ceiling applied when none is configured.
const DefaultMaxBytes int64 = 10 << 20

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLS  Format = "xls"
	FormatXLSX Format = "xlsx"
	FormatXLSB Format = "xlsb"
)

// ParseFormat accepts an extension with or without a dot, or a file name.
func ParseFormat(nameOrExt string) (Format, error) {
	ext := strings.ToLower(strings.TrimSpace(nameOrExt))
	if e := filepath.Ext(ext); e != "" {
		ext = e
	}
	switch Format(strings.TrimPrefix(ext, ".")) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLS:
		return FormatXLS, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatXLSB:
		return FormatXLSB, nil
	}
	return "", types.Errorf(types.CodeUnsupportedFormat, "ingest.format",
		"unsupported file type %q; expected one of csv, xls, xlsx, xlsb", nameOrExt)
}

// Warning is a non-fatal issue found while parsing. Row is the 1-based record
// number, header included.
type Warning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Table is a rectangular parse result: every row has exactly len(Headers) string cells.
type Table struct {
	Format   Format
	Headers  []string
	Rows     [][]string
	Warnings []Warning
}

// Record returns row i keyed by header.
func (t *Table) Record(i int) map[string]string {
	out := make(map[string]string, len(t.Headers))
	for j, h := range t.Headers {
		out[h] = t.Rows[i][j]
	}
	return out
}

func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Record(i)
	}
	return out
}

func (t *Table) HasHeader(h string) bool {
	for _, x := range t.Headers {
		if x == h {
			return true
		}
	}
	return false
}

type Parser struct {
	maxBytes int64
	log      *logger.Logger
}

func NewParser(maxBytes int64, baseLog *logger.Logger) *Parser {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Parser{maxBytes: maxBytes, log: baseLog.With("component", "Ingestor")}
}

func (p *Parser) MaxBytes() int64 { return p.maxBytes }

// ReadAll drains r, failing with PayloadTooLarge as soon as the limit is crossed.
func (p *Parser) ReadAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, types.NewError(types.CodeMalformedFile, "ingest.read", "could not read upload", err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, p.tooLarge()
	}
	return data, nil
}

// Parse decodes data according to the declared extension.
func (p *Parser) Parse(data []byte, declared string) (*Table, error) {
	format, err := ParseFormat(declared)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > p.maxBytes {
		return nil, p.tooLarge()
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, types.NewError(types.CodeEmptyFile, "ingest.parse", "file is empty", nil)
	}

	var raw [][]string
	switch format {
	case FormatCSV:
		raw, err = readCSV(data)
	case FormatXLSX:
		raw, err = readXLSX(data)
	case FormatXLS:
		raw, err = readXLS(data)
	case FormatXLSB:
		raw, err = readXLSB(data)
	}
	if err != nil {
		return nil, types.Wrap(types.CodeMalformedFile, "ingest.parse", err)
	}

	table, err := buildTable(raw)
	if err != nil {
		return nil, err
	}
	table.Format = format
	if len(table.Warnings) > 0 {
		p.log.Warn("Parsed file with warnings", "format", format, "rows", len(table.Rows), "warnings", len(table.Warnings))
	}
	return table, nil
}

func (p *Parser) tooLarge() error {
	return types.Errorf(types.CodePayloadTooLarge, "ingest.read", "file exceeds the %d MB upload limit", p.maxBytes>>20)
}

// buildTable turns raw rows into a normalized Table. The first row is the header.
func buildTable(raw [][]string) (*Table, error) {
	if len(raw) == 0 {
		return nil, types.NewError(types.CodeEmptyFile, "ingest.parse", "file contains no rows", nil)
	}
	headers, err := normalizeHeaders(raw[0])
	if err != nil {
		return nil, err
	}
	width := len(headers)

	t := &Table{Headers: headers}
	for i, row := range raw[1:] {
		rowNum := i + 2
		if blankRow(row) {
			continue
		}
		switch {
		case len(row) < width:
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		case len(row) > width:
			if !blankRow(row[width:]) {
				t.Warnings = append(t.Warnings, Warning{
					Row:     rowNum,
					Message: fmt.Sprintf("row has %d columns, expected %d; extra values dropped", len(row), width),
				})
			}
			row = row[:width]
		}
		cells := make([]string, width)
		copy(cells, row)
		t.Rows = append(t.Rows, cells)
	}
	if len(t.Rows) == 0 {
		return nil, types.NewError(types.CodeEmptyFile, "ingest.parse", "file contains no data rows", nil)
	}
	return t, nil
}

func normalizeHeaders(raw []string) ([]string, error) {
	if blankRow(raw) {
		return nil, types.NewError(types.CodeMalformedFile, "ingest.headers", "header row is empty", nil)
	}
	// trailing blank header cells are formatting noise, not columns
	end := len(raw)
	for end > 0 && NormalizeHeader(raw[end-1]) == "" {
		end--
	}
	out := make([]string, end)
	seen := make(map[string]int, end)
	for i := 0; i < end; i++ {
		h := NormalizeHeader(raw[i])
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if prev, ok := seen[h]; ok {
			return nil, types.Errorf(types.CodeMalformedFile, "ingest.headers",
				"duplicate column %q (columns %d and %d)", h, prev+1, i+1)
		}
		seen[h] = i
		out[i] = h
	}
	return out, nil
}

// NormalizeHeader is the canonical form of a column name: BOM stripped, trimmed, lowercased.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
