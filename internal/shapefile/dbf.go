package shapefile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/woozymasta/shp2geojson/internal/attribute"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	dbfHeaderSize     = 32
	dbfDescriptorSize = 32
	dbfTerminator     = 0x0d
)

type dbfHeader struct {
	Version      byte
	Records      uint32
	HeaderLength uint16
	RecordLength uint16
}

// dbfTable reads attribute rows by position straight from the .dbf file.
type dbfTable struct {
	file    *os.File
	header  dbfHeader
	fields  []Field
	offsets []int
	row     []byte
}

// openDBF reads and validates the header and field descriptors of a .dbf.
func openDBF(path string) (*dbfTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	t, err := readDBF(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return t, nil
}

func readDBF(f *os.File) (*dbfTable, error) {
	buf := make([]byte, dbfHeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	h := dbfHeader{
		Version:      buf[0],
		Records:      binary.LittleEndian.Uint32(buf[4:8]),
		HeaderLength: binary.LittleEndian.Uint16(buf[8:10]),
		RecordLength: binary.LittleEndian.Uint16(buf[10:12]),
	}

	if h.HeaderLength < dbfHeaderSize+1 {
		return nil, fmt.Errorf("header length %d too small", h.HeaderLength)
	}
	if h.RecordLength < 1 {
		return nil, fmt.Errorf("record length %d too small", h.RecordLength)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	need := int64(h.HeaderLength) + int64(h.Records)*int64(h.RecordLength)
	if info.Size() < need {
		return nil, fmt.Errorf("file is %d bytes, header declares %d", info.Size(), need)
	}

	desc := make([]byte, int(h.HeaderLength)-dbfHeaderSize)
	if _, err := f.ReadAt(desc, dbfHeaderSize); err != nil {
		return nil, fmt.Errorf("read field descriptors: %w", err)
	}

	t := &dbfTable{file: f, header: h, row: make([]byte, h.RecordLength)}

	// the first byte of every row is the deletion flag
	offset := 1
	for pos := 0; pos+dbfDescriptorSize <= len(desc) && desc[pos] != dbfTerminator; pos += dbfDescriptorSize {
		field := parseDescriptor(desc[pos : pos+dbfDescriptorSize])
		if field.Size == 0 {
			return nil, fmt.Errorf("field %q has zero width", field.Name)
		}
		t.fields = append(t.fields, field)
		t.offsets = append(t.offsets, offset)
		offset += field.Size
	}

	if offset > int(h.RecordLength) {
		return nil, fmt.Errorf("fields span %d bytes, record length is %d", offset, h.RecordLength)
	}

	return t, nil
}

func parseDescriptor(b []byte) Field {
	name, _, _ := bytes.Cut(b[:11], []byte{0})
	f := Field{
		Name:      strings.TrimSpace(string(name)),
		Type:      b[11],
		Size:      int(b[16]),
		Precision: int(b[17]),
	}
	// long character fields carry the high byte of the width in place of
	// the decimal count
	if f.Type == 'C' {
		f.Size |= f.Precision << 8
		f.Precision = 0
	}
	f.Kind = attribute.KindFromFieldType(f.Type)
	return f
}

// cell returns the raw bytes of field i in the last row read.
func (t *dbfTable) cell(i int) []byte {
	return t.row[t.offsets[i] : t.offsets[i]+t.fields[i].Size]
}

func (t *dbfTable) read(row int) error {
	pos := int64(t.header.HeaderLength) + int64(row)*int64(t.header.RecordLength)
	if _, err := t.file.ReadAt(t.row, pos); err != nil {
		return fmt.Errorf("read record %d: %w", row, err)
	}
	return nil
}

func (t *dbfTable) Close() error { return t.file.Close() }

// codePages maps numeric .cpg values to encoding labels.
var codePages = map[string]string{
	"866":   "ibm866",
	"874":   "windows-874",
	"932":   "shift_jis",
	"936":   "gbk",
	"949":   "euc-kr",
	"950":   "big5",
	"1250":  "windows-1250",
	"1251":  "windows-1251",
	"1252":  "windows-1252",
	"1253":  "windows-1253",
	"1254":  "windows-1254",
	"1255":  "windows-1255",
	"1256":  "windows-1256",
	"1257":  "windows-1257",
	"1258":  "windows-1258",
	"65001": "utf-8",
}

// resolveEncoding picks the character decoder for a dataset. An explicit name
// wins over the .cpg sidecar. A nil decoder means the text is already UTF-8.
func resolveEncoding(name, cpgPath string) (*encoding.Decoder, string, error) {
	if name == "" {
		data, err := os.ReadFile(cpgPath)
		if err != nil {
			return nil, "utf-8", nil
		}
		name = strings.TrimSpace(string(data))
	}

	label := strings.ToLower(strings.TrimSpace(name))
	label = strings.TrimPrefix(label, "ansi ")
	if mapped, ok := codePages[label]; ok {
		label = mapped
	}
	if label == "" || label == "utf-8" || label == "utf8" {
		return nil, "utf-8", nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, "", fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	canonical, _ := htmlindex.Name(enc)
	return enc.NewDecoder(), canonical, nil
}
