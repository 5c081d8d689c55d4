package shapefile_test

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/woozymasta/shp2geojson/internal/attribute"
	"github.com/woozymasta/shp2geojson/internal/shapefile"
	"github.com/woozymasta/shp2geojson/internal/shapefile/shptest"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
)

var cityFields = []shptest.Field{
	{Name: "name", Type: 'C', Size: 12},
	{Name: "pop", Type: 'N', Size: 10, Precision: 2},
	{Name: "capital", Type: 'L', Size: 1},
	{Name: "founded", Type: 'D', Size: 8},
}

func TestOpenAndIterate(t *testing.T) {
	dir := t.TempDir()
	stem := shptest.Points(t, dir, "cities", [2]float64{139.69, 35.68}, [2]float64{135.5, 34.69})
	shptest.WriteDBF(t, stem, cityFields,
		[]string{"Tokyo", "13960000", "T", "14570101"},
		[]string{"Osaka", "", "F", ""},
	)

	src, err := shapefile.Open(stem, shapefile.Options{})
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "Point", src.ShapeType)
	assert.Equal(t, 2, src.RecordCount())
	require.Len(t, src.Fields(), 4)
	assert.Equal(t, "name", src.Fields()[0].Name)
	assert.Equal(t, attribute.KindNumeric, src.Fields()[1].Kind)

	var entries []shapefile.Entry
	for src.Next() {
		entries = append(entries, src.Entry())
	}
	require.NoError(t, src.Err())
	require.Len(t, entries, 2)

	first := entries[0]
	require.NotNil(t, first.Shape)
	assert.Equal(t, shapefile.ShapePoint, first.Shape.Kind)
	assert.Equal(t, shapefile.Point{X: 139.69, Y: 35.68}, first.Shape.Point)
	assert.Equal(t, shapefile.Record{
		{Field: "name", Value: attribute.NewValue(attribute.KindCharacter, "Tokyo")},
		{Field: "pop", Value: attribute.NewValue(attribute.KindNumeric, "13960000")},
		{Field: "capital", Value: attribute.NewValue(attribute.KindLogical, "T")},
		{Field: "founded", Value: attribute.NewValue(attribute.KindDate, "14570101")},
	}, first.Record)

	second := entries[1]
	assert.True(t, second.Record[1].Value.Null)
	assert.True(t, second.Record[3].Value.Null)
	assert.False(t, src.Next(), "source is single pass")
}

func TestCollectMismatch(t *testing.T) {
	tests := []struct {
		name    string
		shapes  int
		records int
		policy  shapefile.Pairing
		pairs   int
		wantErr bool
	}{
		{"truncate more shapes", 10, 9, shapefile.PairTruncate, 9, false},
		{"truncate more records", 3, 5, shapefile.PairTruncate, 3, false},
		{"pad more shapes", 10, 9, shapefile.PairPad, 10, false},
		{"pad more records", 3, 5, shapefile.PairPad, 3, false},
		{"strict mismatch", 10, 9, shapefile.PairStrict, 0, true},
		{"strict equal", 4, 4, shapefile.PairStrict, 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			coords := make([][2]float64, tt.shapes)
			for i := range coords {
				coords[i] = [2]float64{float64(i), float64(i)}
			}
			rows := make([][]string, tt.records)
			for i := range rows {
				rows[i] = []string{"x"}
			}
			stem := shptest.Points(t, dir, "ds", coords...)
			shptest.WriteDBF(t, stem, []shptest.Field{{Name: "name", Type: 'C', Size: 4}}, rows...)

			src, err := shapefile.Open(stem, shapefile.Options{})
			require.NoError(t, err)
			defer src.Close()

			pairs, counts, err := src.Collect(tt.policy)
			assert.Equal(t, shapefile.Counts{Shapes: tt.shapes, Records: tt.records}, counts)
			assert.Equal(t, tt.pairs, counts.Paired(tt.policy))
			if tt.wantErr {
				var mismatch *shapefile.CountMismatchError
				require.ErrorAs(t, err, &mismatch)
				return
			}
			require.NoError(t, err)
			require.Len(t, pairs, tt.pairs)
			for i, p := range pairs {
				assert.Equal(t, i, p.Index)
				assert.Len(t, p.Record, 1)
			}
		})
	}
}

func TestCountsWarning(t *testing.T) {
	assert.NoError(t, shapefile.Counts{Shapes: 3, Records: 3}.Warning())

	err := shapefile.Counts{Shapes: 10, Records: 9}.Warning()
	var mismatch *shapefile.CountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Contains(t, err.Error(), "10 records")
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := shapefile.Open(filepath.Join(dir, "missing"), shapefile.Options{})
	assert.ErrorIs(t, err, shapefile.ErrInputNotFound)

	// shp present, dbf missing
	stem := shptest.Points(t, dir, "nodbf", [2]float64{0, 0})
	require.NoFileExists(t, stem+".dbf")
	_, err = shapefile.Open(stem, shapefile.Options{})
	assert.ErrorIs(t, err, shapefile.ErrInputNotFound)

	// truncated dbf header
	stem = shptest.Points(t, dir, "baddbf", [2]float64{0, 0})
	require.NoError(t, os.WriteFile(stem+".dbf", []byte{0x03, 0, 0}, 0o644))
	_, err = shapefile.Open(stem, shapefile.Options{})
	assert.ErrorIs(t, err, shapefile.ErrInputCorrupt)

	// garbage shp header
	stem = filepath.Join(dir, "badshp")
	require.NoError(t, os.WriteFile(stem+".shp", []byte("not a shapefile"), 0o644))
	shptest.WriteDBF(t, stem, []shptest.Field{{Name: "a", Type: 'C', Size: 1}})
	_, err = shapefile.Open(stem, shapefile.Options{})
	assert.ErrorIs(t, err, shapefile.ErrInputCorrupt)

	var inputErr *shapefile.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, stem+".shp", inputErr.Path)
}

func TestOpenEncoding(t *testing.T) {
	dir := t.TempDir()
	stem := shptest.Points(t, dir, "jp", [2]float64{0, 0})

	sjis, err := japanese.ShiftJIS.NewEncoder().String("東京")
	require.NoError(t, err)
	shptest.WriteDBF(t, stem, []shptest.Field{{Name: "name", Type: 'C', Size: 10}}, []string{sjis})

	read := func(opts shapefile.Options) string {
		src, err := shapefile.Open(stem, opts)
		require.NoError(t, err)
		defer src.Close()
		require.True(t, src.Next())
		return src.Entry().Record[0].Value.Raw
	}

	assert.Equal(t, "東京", read(shapefile.Options{Encoding: "shift_jis"}))

	require.NoError(t, os.WriteFile(stem+".cpg", []byte("932\n"), 0o644))
	assert.Equal(t, "東京", read(shapefile.Options{}))

	_, err = shapefile.Open(stem, shapefile.Options{Encoding: "klingon"})
	assert.Error(t, err)
}

func TestPolygonRingRoles(t *testing.T) {
	dir := t.TempDir()
	outer := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}}
	hole := []shp.Point{{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 2}}
	stem := shptest.WriteShapes(t, dir, "poly", shp.POLYGON, shptest.Polygon(outer, hole))
	shptest.WriteDBF(t, stem, []shptest.Field{{Name: "id", Type: 'N', Size: 4}}, []string{"1"})

	src, err := shapefile.Open(stem, shapefile.Options{})
	require.NoError(t, err)
	defer src.Close()

	require.True(t, src.Next())
	shape := src.Entry().Shape
	require.NotNil(t, shape)
	require.Equal(t, shapefile.ShapePolygon, shape.Kind)
	require.Len(t, shape.Rings, 2)
	assert.Equal(t, shapefile.RingOuter, shape.Rings[0].Role)
	assert.Equal(t, shapefile.RingInner, shape.Rings[1].Role)
	assert.Len(t, shape.Rings[1].Points, 5)
}

func TestCountFiles(t *testing.T) {
	dir := t.TempDir()
	stem := shptest.Points(t, dir, "inv", [2]float64{0, 0}, [2]float64{1, 1}, [2]float64{2, 2})
	shptest.WriteDBF(t, stem, cityFields, []string{"a"}, []string{"b"})

	inv, err := shapefile.CountFiles(stem+".shp", shapefile.Options{})
	require.NoError(t, err)
	assert.Equal(t, shapefile.Counts{Shapes: 3, Records: 2}, inv.Counts)
	assert.True(t, inv.Mismatch)
	assert.Equal(t, map[string]int{"Point": 3}, inv.Kinds)
	require.Len(t, inv.Fields, 4)
	assert.Equal(t, "N", inv.Fields[1].Type)
	assert.Equal(t, "Numeric", inv.Fields[1].Kind)
}

func TestParsePairing(t *testing.T) {
	for _, name := range []string{"truncate", "pad", "strict"} {
		p, err := shapefile.ParsePairing(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.String())
	}
	_, err := shapefile.ParsePairing("guess")
	assert.Error(t, err)
}

func TestStem(t *testing.T) {
	assert.Equal(t, "data/roads", shapefile.Stem("data/roads.shp"))
	assert.Equal(t, "data/roads", shapefile.Stem("data/roads.DBF"))
	assert.Equal(t, "data/roads", shapefile.Stem("data/roads"))
	assert.Equal(t, "data/roads.v2", shapefile.Stem("data/roads.v2"))
}

// lineDataset writes one polyline of three points. Its record starts at byte
// 100: type at 108, bounding box at 112, part count at 144, point count at 148.
func lineDataset(t *testing.T, dir string) string {
	t.Helper()

	line := shptest.Polyline([]shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 0}})
	stem := shptest.WriteShapes(t, dir, "line", shp.POLYLINE, line)
	shptest.WriteDBF(t, stem, []shptest.Field{{Name: "id", Type: 'N', Size: 4}}, []string{"1"})
	return stem
}

func TestOpenRejectsImpossibleRecords(t *testing.T) {
	le := func(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
	be := func(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }

	tests := []struct {
		name   string
		offset int64
		patch  []byte
	}{
		{"negative part count", 144, le(0xFFFFFFFF)},
		{"negative point count", 148, le(0x80000000)},
		{"point count beyond record", 148, le(math.MaxInt32)},
		{"part count beyond record", 144, le(1 << 20)},
		{"content length beyond file", 104, be(1 << 30)},
		{"content length too short", 104, be(1)},
		{"unknown shape type", 108, le(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stem := lineDataset(t, t.TempDir())
			shptest.Patch(t, stem+".shp", tt.offset, tt.patch)

			_, err := shapefile.Open(stem, shapefile.Options{})
			require.ErrorIs(t, err, shapefile.ErrInputCorrupt)
			assert.Contains(t, err.Error(), "record 1")

			_, err = shapefile.CountFiles(stem, shapefile.Options{})
			assert.ErrorIs(t, err, shapefile.ErrInputCorrupt)
		})
	}

	t.Run("untouched", func(t *testing.T) {
		stem := lineDataset(t, t.TempDir())
		inv, err := shapefile.CountFiles(stem, shapefile.Options{})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"PolyLine": 1}, inv.Kinds)
	})
}

func openFiles(t *testing.T) int {
	t.Helper()

	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil || runtime.GOOS != "linux" {
		t.Skip("descriptor count unavailable")
	}
	return len(entries)
}

func TestCloseReleasesFiles(t *testing.T) {
	dir := t.TempDir()
	stem := shptest.Points(t, dir, "fd", [2]float64{0, 0}, [2]float64{1, 1})
	shptest.WriteDBF(t, stem, []shptest.Field{{Name: "name", Type: 'C', Size: 4}}, []string{"a"}, []string{"b"})

	before := openFiles(t)

	// a table truncated after opening fails the first record read
	src, err := shapefile.Open(stem, shapefile.Options{})
	require.NoError(t, err)
	require.NoError(t, os.Truncate(stem+".dbf", 40))
	assert.False(t, src.Next())
	require.ErrorIs(t, src.Err(), shapefile.ErrInputCorrupt)
	require.NoError(t, src.Close())
	assert.Equal(t, before, openFiles(t))

	bad := lineDataset(t, dir)
	shptest.Patch(t, bad+".shp", 144, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	_, err = shapefile.Open(bad, shapefile.Options{})
	require.Error(t, err)
	assert.Equal(t, before, openFiles(t))
}

func TestOpenUpperCaseExtensions(t *testing.T) {
	dir := t.TempDir()
	stem := shptest.Points(t, dir, "DATA", [2]float64{5, 6})
	shptest.WriteDBF(t, stem, []shptest.Field{{Name: "name", Type: 'C', Size: 4}}, []string{"up"})
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		require.NoError(t, os.Rename(stem+ext, stem+".tmp"))
		require.NoError(t, os.Rename(stem+".tmp", stem+strings.ToUpper(ext)))
	}

	assert.Equal(t, stem+".SHP", shapefile.Sibling(stem, ".shp"))

	src, err := shapefile.Open(stem+".SHP", shapefile.Options{})
	require.NoError(t, err)
	defer src.Close()

	require.True(t, src.Next())
	e := src.Entry()
	require.NotNil(t, e.Shape)
	assert.Equal(t, shapefile.Point{X: 5, Y: 6}, e.Shape.Point)
	assert.Equal(t, "up", e.Record[0].Value.Raw)
}

func TestOpenBinaryFields(t *testing.T) {
	dir := t.TempDir()
	stem := shptest.Points(t, dir, "vfp", [2]float64{0, 0})

	count := binary.LittleEndian.AppendUint32(nil, 0x20202020)
	ratio := binary.LittleEndian.AppendUint64(nil, math.Float64bits(0.5))
	shptest.WriteDBF(t, stem, []shptest.Field{
		{Name: "count", Type: 'I', Size: 4},
		{Name: "ratio", Type: 'B', Size: 8},
		{Name: "label", Type: 'C', Size: 3},
	}, []string{string(count), string(ratio), "abc"})

	src, err := shapefile.Open(stem, shapefile.Options{})
	require.NoError(t, err)
	defer src.Close()

	require.True(t, src.Next())
	rec := src.Entry().Record
	assert.Equal(t, attribute.KindNumeric, src.Fields()[0].Kind)
	assert.Equal(t, "538976288", rec[0].Value.Raw)
	assert.Equal(t, "0.5", rec[1].Value.Raw)
	assert.Equal(t, "abc", rec[2].Value.Raw)
}
