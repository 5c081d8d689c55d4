// Package shptest writes small shapefile datasets for tests.
package shptest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
)

// Field declares one .dbf column.
type Field struct {
	Name      string
	Type      byte // 'C', 'N', 'F', 'L', 'D' or a binary type with raw cells
	Size      int
	Precision int
}

// WriteShapes writes a .shp/.shx pair of the given type into dir and returns
// the stem. No .dbf is written.
func WriteShapes(t testing.TB, dir, name string, typ shp.ShapeType, shapes ...shp.Shape) string {
	t.Helper()

	stem := filepath.Join(dir, name)
	w, err := shp.Create(stem+".shp", typ)
	if err != nil {
		t.Fatalf("create shp: %v", err)
	}
	for _, s := range shapes {
		w.Write(s)
	}
	w.Close()

	// the writer leaves an empty attribute table named without the dot
	_ = os.Remove(stem + "dbf")

	return stem
}

// Patch overwrites bytes of the file at path starting at offset.
func Patch(t testing.TB, path string, offset int64, b []byte) {
	t.Helper()

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(b, offset); err != nil {
		t.Fatalf("patch %s: %v", path, err)
	}
}

// Points writes a point dataset with one shape per coordinate pair.
func Points(t testing.TB, dir, name string, coords ...[2]float64) string {
	t.Helper()

	shapes := make([]shp.Shape, len(coords))
	for i, c := range coords {
		shapes[i] = &shp.Point{X: c[0], Y: c[1]}
	}
	return WriteShapes(t, dir, name, shp.POINT, shapes...)
}

// Polyline builds a go-shp polyline from parts.
func Polyline(parts ...[]shp.Point) *shp.PolyLine {
	return shp.NewPolyLine(parts)
}

// Polygon builds a go-shp polygon from rings.
func Polygon(rings ...[]shp.Point) *shp.Polygon {
	p := shp.Polygon(*shp.NewPolyLine(rings))
	return &p
}

// WriteDBF writes stem.dbf with the given fields and rows. Cells are raw text
// and are padded to the field size, numbers right-aligned.
func WriteDBF(t testing.TB, stem string, fields []Field, rows ...[]string) {
	t.Helper()

	if err := os.WriteFile(stem+".dbf", EncodeDBF(fields, rows...), 0o644); err != nil {
		t.Fatalf("write dbf: %v", err)
	}
}

// EncodeDBF renders a dBASE III file.
func EncodeDBF(fields []Field, rows ...[]string) []byte {
	recordLen := 1
	for _, f := range fields {
		recordLen += f.Size
	}
	headerLen := 32 + 32*len(fields) + 1

	var buf bytes.Buffer
	header := make([]byte, 32)
	header[0] = 0x03
	header[1], header[2], header[3] = 124, 1, 1
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(rows)))
	binary.LittleEndian.PutUint16(header[8:10], uint16(headerLen))
	binary.LittleEndian.PutUint16(header[10:12], uint16(recordLen))
	buf.Write(header)

	for _, f := range fields {
		desc := make([]byte, 32)
		copy(desc[:11], f.Name)
		desc[11] = f.Type
		desc[16] = byte(f.Size)
		desc[17] = byte(f.Precision)
		buf.Write(desc)
	}
	buf.WriteByte(0x0D)

	for _, row := range rows {
		buf.WriteByte(' ')
		for i, f := range fields {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if len(cell) > f.Size {
				cell = cell[:f.Size]
			}
			switch f.Type {
			case 'N', 'F':
				buf.WriteString(fmt.Sprintf("%*s", f.Size, cell))
			default:
				buf.WriteString(cell + strings.Repeat(" ", f.Size-len(cell)))
			}
		}
	}
	buf.WriteByte(0x1A)

	return buf.Bytes()
}
