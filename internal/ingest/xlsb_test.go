package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"unicode/utf16"
)

func biffVarint(v, maxBytes int) []byte {
	var out []byte
	for i := 0; i < maxBytes; i++ {
		b := byte(v & 0x7F)
		v >>= 7
		if v > 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

func biffRecord(typ int, payload []byte) []byte {
	out := biffVarint(typ, 2)
	out = append(out, biffVarint(len(payload), 4)...)
	return append(out, payload...)
}

func wideStr(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := binary.LittleEndian.AppendUint32(nil, uint32(len(units)))
	for _, u := range units {
		out = binary.LittleEndian.AppendUint16(out, u)
	}
	return out
}

func cellHdr(col int) []byte {
	return append(binary.LittleEndian.AppendUint32(nil, uint32(col)), 0, 0, 0, 0)
}

func rowHdr(row int) []byte {
	return biffRecord(brtRowHdr, append(binary.LittleEndian.AppendUint32(nil, uint32(row)), make([]byte, 13)...))
}

func buildXLSB(t *testing.T) []byte {
	t.Helper()

	var sst []byte
	for _, s := range []string{"Email", "a@x.com"} {
		sst = append(sst, biffRecord(brtSSTItem, append([]byte{0}, wideStr(s)...))...)
	}

	var sheet []byte
	sheet = append(sheet, rowHdr(0)...)
	sheet = append(sheet, biffRecord(brtCellIsst, append(cellHdr(0), binary.LittleEndian.AppendUint32(nil, 0)...))...)
	sheet = append(sheet, biffRecord(brtCellSt, append(cellHdr(1), wideStr("Type")...))...)
	sheet = append(sheet, biffRecord(brtCellSt, append(cellHdr(2), wideStr("Score")...))...)
	sheet = append(sheet, biffRecord(brtCellSt, append(cellHdr(3), wideStr("Active")...))...)
	sheet = append(sheet, rowHdr(1)...)
	sheet = append(sheet, biffRecord(brtCellIsst, append(cellHdr(0), binary.LittleEndian.AppendUint32(nil, 1)...))...)
	sheet = append(sheet, biffRecord(brtCellRk, append(cellHdr(1), binary.LittleEndian.AppendUint32(nil, 42<<2|0x02)...))...)
	sheet = append(sheet, biffRecord(brtCellReal, append(cellHdr(2), binary.LittleEndian.AppendUint64(nil, math.Float64bits(3.5))...))...)
	sheet = append(sheet, biffRecord(brtCellBool, append(cellHdr(3), 1))...)

	decoy := append(rowHdr(0), biffRecord(brtCellSt, append(cellHdr(0), wideStr("wrong sheet")...))...)

	bundle := make([]byte, 8)
	bundle = append(bundle, wideStr("rId7")...)
	bundle = append(bundle, wideStr("Users")...)
	workbook := biffRecord(brtBundleSh, bundle)

	rels := `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId7" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet2.bin"/>
</Relationships>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string][]byte{
		"xl/workbook.bin":            workbook,
		"xl/_rels/workbook.bin.rels": []byte(rels),
		"xl/sharedStrings.bin":       sst,
		"xl/worksheets/sheet1.bin":   decoy,
		"xl/worksheets/sheet2.bin":   sheet,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestParseXLSB(t *testing.T) {
	table, err := newTestParser(0).Parse(buildXLSB(t), "users.xlsb")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := map[string]string{"email": "a@x.com", "type": "42", "score": "3.5", "active": "TRUE"}
	got := table.Record(0)
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s: got %q want %q (row %v)", k, got[k], v, got)
		}
	}
	if len(table.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(table.Rows))
	}
}

func TestDecodeRK(t *testing.T) {
	if got := decodeRK(42<<2 | 0x02); got != 42 {
		t.Fatalf("int rk: %v", got)
	}
	if got := decodeRK(1234<<2 | 0x03); got != 12.34 {
		t.Fatalf("int/100 rk: %v", got)
	}
	bits := math.Float64bits(2.5)
	if got := decodeRK(uint32(bits >> 32)); got != 2.5 {
		t.Fatalf("float rk: %v", got)
	}
}
