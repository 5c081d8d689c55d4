package shapefile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/woozymasta/shp2geojson/internal/attribute"

	"github.com/jonas-p/go-shp"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
	"golang.org/x/text/encoding"
)

// Options controls how a dataset is opened.
type Options struct {
	// Encoding of character fields, e.g. "shift_jis". Empty reads the .cpg
	// sidecar and falls back to UTF-8.
	Encoding string
}

// Entry is one positional step through a dataset. Past the end of either
// file the corresponding side is nil.
type Entry struct {
	Index  int
	Shape  *Shape
	Record Record
}

// Source walks a .shp/.dbf pair once, pairing the Nth shape with the Nth
// record. It is not safe for concurrent use and cannot be restarted.
type Source struct {
	Stem      string
	ShapeType string
	Encoding  string

	shpPath string
	dbfPath string

	reader  shp.SequentialReader
	table   *dbfTable
	decoder *encoding.Decoder
	fields  []Field
	records int

	index      int
	shapesDone bool
	shapes     int
	entry      Entry
	err        error
}

// Stem strips a shapefile extension from path, whatever its case.
func Stem(path string) string {
	ext := filepath.Ext(path)
	switch strings.ToLower(ext) {
	case ".shp", ".dbf", ".shx", ".cpg", ".prj":
		return strings.TrimSuffix(path, ext)
	}
	return path
}

// Sibling returns the file of stem with extension ext. The lower-case name
// wins when both exist; an upper-case file is used when it is the only one.
func Sibling(stem, ext string) string {
	lower := stem + strings.ToLower(ext)
	if _, err := os.Stat(lower); err == nil {
		return lower
	}
	upper := stem + strings.ToUpper(ext)
	if _, err := os.Stat(upper); err == nil {
		return upper
	}
	return lower
}

// Open opens the geometry and attribute files named by stem.
func Open(stem string, opts Options) (*Source, error) {
	stem = Stem(stem)
	shpPath := Sibling(stem, ".shp")
	dbfPath := Sibling(stem, ".dbf")

	for _, p := range []string{shpPath, dbfPath} {
		if _, err := os.Stat(p); err != nil {
			kind := ErrInputCorrupt
			if errors.Is(err, fs.ErrNotExist) {
				kind = ErrInputNotFound
			}
			return nil, &InputError{Path: p, Kind: kind, Err: err}
		}
	}

	geometry, err := readSHPHeader(shpPath)
	if err != nil {
		return nil, &InputError{Path: shpPath, Kind: ErrInputCorrupt, Err: err}
	}
	if err := checkSHPRecords(shpPath); err != nil {
		return nil, &InputError{Path: shpPath, Kind: ErrInputCorrupt, Err: err}
	}

	decoder, encName, err := resolveEncoding(opts.Encoding, Sibling(stem, ".cpg"))
	if err != nil {
		return nil, err
	}

	table, err := openDBF(dbfPath)
	if err != nil {
		return nil, &InputError{Path: dbfPath, Kind: ErrInputCorrupt, Err: err}
	}

	shpFile, err := os.Open(shpPath)
	if err != nil {
		_ = table.Close()
		return nil, &InputError{Path: shpPath, Kind: ErrInputCorrupt, Err: err}
	}

	reader := shp.SequentialReaderFromExt(shpFile, shapesOnly())
	if err := reader.Err(); err != nil {
		_ = multierr.Combine(reader.Close(), table.Close())
		return nil, &InputError{Path: shpPath, Kind: ErrInputCorrupt, Err: err}
	}

	src := &Source{
		Stem:      stem,
		ShapeType: ShapeTypeName(geometry),
		Encoding:  encName,
		shpPath:   shpPath,
		dbfPath:   dbfPath,
		reader:    reader,
		table:     table,
		decoder:   decoder,
		fields:    table.fields,
		records:   int(table.header.Records),
	}

	log.Debug().
		Str("path", stem).
		Str("shape_type", src.ShapeType).
		Str("encoding", encName).
		Int("fields", len(src.fields)).
		Int("records", src.records).
		Msg("Opened shapefile")

	return src, nil
}

// shapesOnly is an attribute stream with no columns and endless blank rows.
// The sequential reader then advances on shapes alone; attributes are read
// from the real table by position.
func shapesOnly() io.ReadCloser {
	header := make([]byte, dbfHeaderSize+1)
	binary.LittleEndian.PutUint16(header[8:10], dbfHeaderSize+1)
	binary.LittleEndian.PutUint16(header[10:12], 1)
	header[dbfHeaderSize] = dbfTerminator
	return io.NopCloser(io.MultiReader(bytes.NewReader(header), blankRows{}))
}

type blankRows struct{}

func (blankRows) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = ' '
	}
	return len(p), nil
}

// Fields returns the attribute schema in file order.
func (s *Source) Fields() []Field { return s.fields }

// RecordCount is the number of attribute records declared by the .dbf header.
func (s *Source) RecordCount() int { return s.records }

// Next advances to the next entry. It returns false once both files are
// exhausted or a read error occurs; check Err afterwards.
func (s *Source) Next() bool {
	if s.err != nil {
		return false
	}

	entry := Entry{Index: s.index}

	if !s.shapesDone {
		if s.reader.Next() {
			_, raw := s.reader.Shape()
			shape := convertShape(raw)
			entry.Shape = &shape
			s.shapes++
		} else {
			s.shapesDone = true
			if err := s.reader.Err(); err != nil {
				s.err = &InputError{Path: s.shpPath, Kind: ErrInputCorrupt, Err: err}
				return false
			}
		}
	}

	if s.index < s.records {
		rec, err := s.readRecord(s.index)
		if err != nil {
			s.err = &InputError{Path: s.dbfPath, Kind: ErrInputCorrupt, Err: err}
			return false
		}
		entry.Record = rec
	}

	if entry.Shape == nil && entry.Record == nil {
		return false
	}

	s.entry = entry
	s.index++
	return true
}

// Entry returns the entry produced by the last call to Next.
func (s *Source) Entry() Entry { return s.entry }

// Err returns the first read error encountered by Next.
func (s *Source) Err() error { return s.err }

// Close releases both files, also after a read error.
func (s *Source) Close() error {
	return multierr.Combine(s.reader.Close(), s.table.Close())
}

func (s *Source) readRecord(row int) (Record, error) {
	if err := s.table.read(row); err != nil {
		return nil, err
	}

	rec := make(Record, len(s.fields))
	for i, f := range s.fields {
		cell := s.table.cell(i)
		if v, ok := attribute.BinaryValue(f.Type, cell); ok {
			rec[i] = Cell{Field: f.Name, Value: v}
			continue
		}

		raw := string(cell)
		if s.decoder != nil && f.Kind == attribute.KindCharacter {
			if text, err := s.decoder.String(raw); err == nil {
				raw = text
			} else {
				log.Debug().Err(err).Str("field", f.Name).Int("row", row).Msg("Failed to transcode value")
			}
		}
		rec[i] = Cell{Field: f.Name, Value: attribute.NewValue(f.Kind, raw)}
	}
	return rec, nil
}

// Collect reads the whole dataset and pairs shapes with records according
// to policy. The returned counts always reflect both files in full.
func (s *Source) Collect(policy Pairing) ([]Pair, Counts, error) {
	pairs := make([]Pair, 0, s.records)

	for s.Next() {
		e := s.Entry()
		if e.Shape == nil {
			continue
		}
		rec := e.Record
		if rec == nil {
			if policy != PairPad {
				continue
			}
			rec = nullRecord(s.fields)
		}
		pairs = append(pairs, Pair{Index: len(pairs), Shape: *e.Shape, Record: rec})
	}

	counts := Counts{Shapes: s.shapes, Records: s.records}
	if err := s.Err(); err != nil {
		return nil, counts, err
	}

	if policy == PairStrict && counts.Mismatch() {
		return nil, counts, counts.Warning()
	}

	return pairs, counts, nil
}
