package shapefile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/jonas-p/go-shp"
)

const (
	shpHeaderSize = 100
	shpFileCode   = 9994
	shpVersion    = 1000

	// record number and content length, both big-endian int32
	shpRecordHeader = 8
	// bounding box preceding the part and point counts
	shpBoxSize = 32
)

// readSHPHeader checks the file code and version of the fixed .shp header and
// returns the declared geometry type.
func readSHPHeader(path string) (shp.ShapeType, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, shpHeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}

	if code := binary.BigEndian.Uint32(buf[0:4]); code != shpFileCode {
		return 0, fmt.Errorf("bad file code %d", code)
	}
	if version := binary.LittleEndian.Uint32(buf[28:32]); version != shpVersion {
		return 0, fmt.Errorf("unsupported version %d", version)
	}

	return shp.ShapeType(int32(binary.LittleEndian.Uint32(buf[32:36]))), nil
}

// shapeLayout is the byte layout of a record body after its shape type.
// Types without counts have a fixed size of header bytes.
type shapeLayout struct {
	header   int64
	parts    bool
	points   bool
	perPart  int64
	perPoint int64
	// Z and M ranges following the arrays
	tail int64
}

var shapeLayouts = map[shp.ShapeType]shapeLayout{
	shp.NULL:        {},
	shp.POINT:       {header: 16},
	shp.POINTM:      {header: 24},
	shp.POINTZ:      {header: 32},
	shp.POLYLINE:    {header: 40, parts: true, points: true, perPart: 4, perPoint: 16},
	shp.POLYGON:     {header: 40, parts: true, points: true, perPart: 4, perPoint: 16},
	shp.POLYLINEM:   {header: 40, parts: true, points: true, perPart: 4, perPoint: 24, tail: 16},
	shp.POLYGONM:    {header: 40, parts: true, points: true, perPart: 4, perPoint: 24, tail: 16},
	shp.POLYLINEZ:   {header: 40, parts: true, points: true, perPart: 4, perPoint: 32, tail: 32},
	shp.POLYGONZ:    {header: 40, parts: true, points: true, perPart: 4, perPoint: 32, tail: 32},
	shp.MULTIPOINT:  {header: 36, points: true, perPoint: 16},
	shp.MULTIPOINTM: {header: 36, points: true, perPoint: 24, tail: 16},
	shp.MULTIPOINTZ: {header: 36, points: true, perPoint: 32, tail: 32},
	shp.MULTIPATCH:  {header: 40, parts: true, points: true, perPart: 8, perPoint: 32, tail: 32},
}

// checkSHPRecords walks every record header of a .shp file and verifies that
// the part and point counts fit inside the record before any decoder
// allocates arrays from them.
func checkSHPRecords(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()

	head := make([]byte, shpRecordHeader+4)
	counts := make([]byte, 8)

	for offset, n := int64(shpHeaderSize), 1; offset < size; n++ {
		if size-offset < int64(len(head)) {
			return fmt.Errorf("record %d at offset %d: truncated header", n, offset)
		}
		if _, err := f.ReadAt(head, offset); err != nil {
			return fmt.Errorf("record %d at offset %d: %w", n, offset, err)
		}

		content := int64(int32(binary.BigEndian.Uint32(head[4:8]))) * 2
		start := offset + shpRecordHeader
		if content < 4 || content > size-start {
			return fmt.Errorf("record %d at offset %d: content length %d out of range", n, offset, content)
		}

		typ := shp.ShapeType(int32(binary.LittleEndian.Uint32(head[8:12])))
		layout, ok := shapeLayouts[typ]
		if !ok {
			return fmt.Errorf("record %d at offset %d: unknown shape type %d", n, offset, typ)
		}

		need := layout.header
		if layout.parts || layout.points {
			width := 4
			if layout.parts {
				width = 8
			}
			if content < 4+shpBoxSize+int64(width) {
				return fmt.Errorf("record %d at offset %d: %d bytes too short for %s", n, offset, content, ShapeTypeName(typ))
			}
			if _, err := f.ReadAt(counts[:width], start+4+shpBoxSize); err != nil {
				return fmt.Errorf("record %d at offset %d: %w", n, offset, err)
			}

			var parts, points int64
			if layout.parts {
				parts = int64(int32(binary.LittleEndian.Uint32(counts[0:4])))
				points = int64(int32(binary.LittleEndian.Uint32(counts[4:8])))
			} else {
				points = int64(int32(binary.LittleEndian.Uint32(counts[0:4])))
			}
			if parts < 0 || points < 0 {
				return fmt.Errorf("record %d at offset %d: negative count (%d parts, %d points)", n, offset, parts, points)
			}
			need += parts*layout.perPart + points*layout.perPoint + layout.tail
		}

		if need > content-4 {
			return fmt.Errorf("record %d at offset %d: %s needs %d bytes, record holds %d", n, offset, ShapeTypeName(typ), need, content-4)
		}

		offset = start + content
	}

	return nil
}
