package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// BIFF12 record types read from xlsb parts.
const (
	brtRowHdr     = 0
	brtCellBlank  = 1
	brtCellRk     = 2
	brtCellError  = 3
	brtCellBool   = 4
	brtCellReal   = 5
	brtCellSt     = 6
	brtCellIsst   = 7
	brtFmlaString = 8
	brtFmlaNum    = 9
	brtFmlaBool   = 10
	brtFmlaError  = 11
	brtSSTItem    = 19
	brtBundleSh   = 156

	cellHeaderLen = 8
	maxSheetRows  = 1 << 20
	maxSheetCols  = 1 << 14
)

var errTruncatedRecord = errors.New("truncated xlsb record")

var biffErrors = map[byte]string{
	0x00: "#NULL!", 0x07: "#DIV/0!", 0x0F: "#VALUE!", 0x17: "#REF!",
	0x1D: "#NAME?", 0x24: "#NUM!", 0x2A: "#N/A", 0x2B: "#GETTING_DATA",
}

// readXLSB reads the first worksheet of an Excel binary workbook.
func readXLSB(data []byte) ([][]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open xlsb container: %w", err)
	}
	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[strings.TrimPrefix(f.Name, "/")] = f
	}

	var strs []string
	if f, ok := parts["xl/sharedStrings.bin"]; ok {
		raw, err := readPart(f)
		if err != nil {
			return nil, err
		}
		if strs, err = parseSharedStrings(raw); err != nil {
			return nil, fmt.Errorf("shared strings: %w", err)
		}
	}

	sheetPath, err := firstSheetPath(parts)
	if err != nil {
		return nil, err
	}
	raw, err := readPart(parts[sheetPath])
	if err != nil {
		return nil, err
	}
	rows, err := parseSheet(raw, strs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sheetPath, err)
	}
	return rows, nil
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return b, nil
}

// firstSheetPath resolves the first sheet through workbook.bin and its rels,
// falling back to the lowest numbered worksheet part.
func firstSheetPath(parts map[string]*zip.File) (string, error) {
	if wb, ok := parts["xl/workbook.bin"]; ok {
		if relsFile, ok := parts["xl/_rels/workbook.bin.rels"]; ok {
			if p := resolveFirstSheet(wb, relsFile); p != "" {
				if _, ok := parts[p]; ok {
					return p, nil
				}
			}
		}
	}
	var sheets []string
	for name := range parts {
		if strings.HasPrefix(name, "xl/worksheets/") && strings.HasSuffix(name, ".bin") && !strings.Contains(name[len("xl/worksheets/"):], "/") {
			sheets = append(sheets, name)
		}
	}
	if len(sheets) == 0 {
		return "", errors.New("xlsb workbook has no worksheets")
	}
	sort.Slice(sheets, func(i, j int) bool {
		if len(sheets[i]) != len(sheets[j]) {
			return len(sheets[i]) < len(sheets[j])
		}
		return sheets[i] < sheets[j]
	})
	return sheets[0], nil
}

type xmlRelationships struct {
	Items []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

func resolveFirstSheet(wb, relsFile *zip.File) string {
	wbRaw, err := readPart(wb)
	if err != nil {
		return ""
	}
	relID := ""
	r := &biffReader{buf: wbRaw}
	for relID == "" {
		typ, payload, ok, err := r.next()
		if err != nil || !ok {
			return ""
		}
		if typ != brtBundleSh || len(payload) < 8 {
			continue
		}
		p := &payloadReader{buf: payload, pos: 8}
		id, null, err := p.wideString(true)
		if err != nil || null {
			return ""
		}
		relID = id
	}

	relsRaw, err := readPart(relsFile)
	if err != nil {
		return ""
	}
	var rels xmlRelationships
	if err := xml.Unmarshal(relsRaw, &rels); err != nil {
		return ""
	}
	for _, rel := range rels.Items {
		if rel.ID != relID {
			continue
		}
		if strings.HasPrefix(rel.Target, "/") {
			return strings.TrimPrefix(rel.Target, "/")
		}
		return path.Clean(path.Join("xl", rel.Target))
	}
	return ""
}

func parseSharedStrings(raw []byte) ([]string, error) {
	var out []string
	r := &biffReader{buf: raw}
	for {
		typ, payload, ok, err := r.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		if typ != brtSSTItem {
			continue
		}
		// first byte holds the rich/phonetic flags
		p := &payloadReader{buf: payload, pos: 1}
		s, _, err := p.wideString(false)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}

func parseSheet(raw []byte, strs []string) ([][]string, error) {
	cells := map[int]map[int]string{}
	curRow, maxRow := -1, -1
	r := &biffReader{buf: raw}
	for {
		typ, payload, ok, err := r.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if typ == brtRowHdr {
			if len(payload) < 4 {
				return nil, errTruncatedRecord
			}
			curRow = int(binary.LittleEndian.Uint32(payload))
			if curRow >= maxSheetRows {
				return nil, fmt.Errorf("row %d out of range", curRow)
			}
			continue
		}
		if typ > brtFmlaError || curRow < 0 {
			continue
		}
		if len(payload) < cellHeaderLen {
			return nil, errTruncatedRecord
		}
		col := int(binary.LittleEndian.Uint32(payload))
		if col >= maxSheetCols {
			return nil, fmt.Errorf("column %d out of range", col)
		}
		val, err := cellValue(typ, payload[cellHeaderLen:], strs)
		if err != nil {
			return nil, err
		}
		if cells[curRow] == nil {
			cells[curRow] = map[int]string{}
		}
		cells[curRow][col] = val
		if curRow > maxRow {
			maxRow = curRow
		}
	}

	rows := make([][]string, maxRow+1)
	for ri, rc := range cells {
		width := 0
		for c := range rc {
			if c+1 > width {
				width = c + 1
			}
		}
		row := make([]string, width)
		for c, v := range rc {
			row[c] = v
		}
		rows[ri] = row
	}
	return rows, nil
}

func cellValue(typ int, body []byte, strs []string) (string, error) {
	p := &payloadReader{buf: body}
	switch typ {
	case brtCellBlank:
		return "", nil
	case brtCellRk:
		v, err := p.u32()
		if err != nil {
			return "", err
		}
		return formatNumber(decodeRK(v)), nil
	case brtCellReal, brtFmlaNum:
		v, err := p.u64()
		if err != nil {
			return "", err
		}
		return formatNumber(math.Float64frombits(v)), nil
	case brtCellBool, brtFmlaBool:
		b, err := p.u8()
		if err != nil {
			return "", err
		}
		if b != 0 {
			return "TRUE", nil
		}
		return "FALSE", nil
	case brtCellError, brtFmlaError:
		b, err := p.u8()
		if err != nil {
			return "", err
		}
		return biffErrors[b], nil
	case brtCellSt, brtFmlaString:
		s, _, err := p.wideString(false)
		return s, err
	case brtCellIsst:
		idx, err := p.u32()
		if err != nil {
			return "", err
		}
		if int(idx) >= len(strs) {
			return "", fmt.Errorf("shared string %d out of range", idx)
		}
		return strs[idx], nil
	}
	return "", nil
}

// decodeRK unpacks the compact RK number encoding.
func decodeRK(v uint32) float64 {
	var f float64
	if v&0x02 != 0 {
		f = float64(int32(v) >> 2)
	} else {
		f = math.Float64frombits(uint64(v&0xFFFFFFFC) << 32)
	}
	if v&0x01 != 0 {
		f /= 100
	}
	return f
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type biffReader struct {
	buf []byte
	pos int
}

// next returns the next record; ok is false at end of input.
func (r *biffReader) next() (typ int, payload []byte, ok bool, err error) {
	if r.pos >= len(r.buf) {
		return 0, nil, false, nil
	}
	if typ, err = r.varint(2); err != nil {
		return 0, nil, false, err
	}
	size, err := r.varint(4)
	if err != nil {
		return 0, nil, false, err
	}
	if size < 0 || r.pos+size > len(r.buf) {
		return 0, nil, false, errTruncatedRecord
	}
	payload = r.buf[r.pos : r.pos+size]
	r.pos += size
	return typ, payload, true, nil
}

func (r *biffReader) varint(maxBytes int) (int, error) {
	v := 0
	for i := 0; i < maxBytes; i++ {
		if r.pos >= len(r.buf) {
			return 0, errTruncatedRecord
		}
		b := r.buf[r.pos]
		r.pos++
		v |= int(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			break
		}
	}
	return v, nil
}

type payloadReader struct {
	buf []byte
	pos int
}

func (p *payloadReader) u8() (byte, error) {
	if p.pos+1 > len(p.buf) {
		return 0, errTruncatedRecord
	}
	b := p.buf[p.pos]
	p.pos++
	return b, nil
}

func (p *payloadReader) u32() (uint32, error) {
	if p.pos+4 > len(p.buf) {
		return 0, errTruncatedRecord
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v, nil
}

func (p *payloadReader) u64() (uint64, error) {
	if p.pos+8 > len(p.buf) {
		return 0, errTruncatedRecord
	}
	v := binary.LittleEndian.Uint64(p.buf[p.pos:])
	p.pos += 8
	return v, nil
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// wideString reads a length-prefixed UTF-16LE string. With nullable set, a
// length of 0xFFFFFFFF reports null.
func (p *payloadReader) wideString(nullable bool) (string, bool, error) {
	n, err := p.u32()
	if err != nil {
		return "", false, err
	}
	if nullable && n == math.MaxUint32 {
		return "", true, nil
	}
	byteLen := int(n) * 2
	if n > maxWideStringChars || p.pos+byteLen > len(p.buf) {
		return "", false, errTruncatedRecord
	}
	out, err := utf16le.NewDecoder().Bytes(p.buf[p.pos : p.pos+byteLen])
	if err != nil {
		return "", false, err
	}
	p.pos += byteLen
	return string(out), false, nil
}

const maxWideStringChars = 32767
