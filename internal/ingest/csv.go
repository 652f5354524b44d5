package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

func readCSV(data []byte) ([][]string, error) {
	decoded, _, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(decoded))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comma = sniffDelimiter(decoded)

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) && len(rows) > 0 {
				return nil, fmt.Errorf("line %d: %w", pe.Line, pe.Err)
			}
			return nil, fmt.Errorf("cannot read header row: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// decodeText converts data to UTF-8. BOMs select UTF-8/UTF-16; input that is not
// valid UTF-8 is treated as Windows-1252, the usual export encoding for Excel CSVs.
func decodeText(data []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8), bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return nil, "", fmt.Errorf("decode BOM-prefixed text: %w", err)
		}
		return out, "bom", nil
	case utf8.Valid(data):
		return data, "utf-8", nil
	default:
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, "", fmt.Errorf("decode windows-1252 text: %w", err)
		}
		return out, "windows-1252", nil
	}
}

// sniffDelimiter picks ; or tab when the header line uses them instead of commas.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		line = data[:i]
	}
	commas := bytes.Count(line, []byte{','})
	best, bestN := ',', commas
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}
