package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/woozymasta/shp2geojson/internal/shapefile"
	"github.com/woozymasta/shp2geojson/internal/shapefile/shptest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) (string, http.Handler, *ServerContext) {
	t.Helper()

	dir := t.TempDir()
	fields := []shptest.Field{{Name: "name", Type: 'C', Size: 8}}

	stem := shptest.Points(t, dir, "cities", [2]float64{1, 2}, [2]float64{3, 4})
	shptest.WriteDBF(t, stem, fields, []string{"A"}, []string{"B"})

	stem = shptest.Points(t, dir, "uneven", [2]float64{0, 0}, [2]float64{1, 1}, [2]float64{2, 2})
	shptest.WriteDBF(t, stem, fields, []string{"A"})

	// geometry without attributes is not listed
	stem = shptest.Points(t, dir, "orphan", [2]float64{0, 0})
	require.NoFileExists(t, stem+".dbf")

	ctx, err := NewServerContext(dir, Settings{Workers: 2, Pairing: shapefile.PairStrict, PreviewSize: 32})
	require.NoError(t, err)
	return dir, NewHandler(ctx), ctx
}

func get(h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewServerContext(t *testing.T) {
	_, _, ctx := testServer(t)

	require.Len(t, ctx.Datasets, 2)
	assert.Equal(t, "cities", ctx.Datasets[0].Name)
	assert.Equal(t, "uneven", ctx.Datasets[1].Name)
}

func TestIndex(t *testing.T) {
	_, h, _ := testServer(t)

	rec := get(h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "/datasets/cities.geojson")
	assert.NotContains(t, body, "orphan")
	assert.NotContains(t, body, "\n  <")

	rec = get(h, "/", "If-None-Match", rec.Header().Get("ETag"))
	assert.Equal(t, http.StatusNotModified, rec.Code)

	assert.Equal(t, http.StatusNotFound, get(h, "/missing").Code)
}

func TestDatasetsList(t *testing.T) {
	_, h, _ := testServer(t)

	rec := get(h, "/api/datasets")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []shapefile.Inventory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "cities", list[0].Path)
	assert.False(t, list[0].Mismatch)
	assert.Equal(t, shapefile.Counts{Shapes: 3, Records: 1}, list[1].Counts)
}

func TestDatasetDocument(t *testing.T) {
	_, h, _ := testServer(t)

	rec := get(h, "/datasets/cities.geojson")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	var doc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	assert.Len(t, doc.Features, 2)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, http.StatusNotModified, get(h, "/datasets/cities.geojson", "If-None-Match", etag).Code)

	rec = get(h, "/datasets/cities.yaml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "type: FeatureCollection")
	assert.NotEqual(t, etag, rec.Header().Get("ETag"))
}

func TestDatasetETagChanges(t *testing.T) {
	dir, h, _ := testServer(t)

	first := get(h, "/datasets/cities.geojson").Header().Get("ETag")

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "cities.dbf"), later, later))

	second := get(h, "/datasets/cities.geojson").Header().Get("ETag")
	assert.NotEqual(t, first, second)
}

func TestDatasetErrors(t *testing.T) {
	_, h, _ := testServer(t)

	assert.Equal(t, http.StatusNotFound, get(h, "/datasets/nothing.geojson").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/datasets/orphan.geojson").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/datasets/cities.kml").Code)
	assert.Equal(t, http.StatusConflict, get(h, "/datasets/uneven.geojson").Code)
}

func TestDatasetPreview(t *testing.T) {
	_, h, _ := testServer(t)

	rec := get(h, "/datasets/cities/preview.webp")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
	assert.Equal(t, "RIFF", rec.Body.String()[:4])
}

func TestUpperCaseDataset(t *testing.T) {
	dir := t.TempDir()
	stem := shptest.Points(t, dir, "ROADS", [2]float64{1, 2})
	shptest.WriteDBF(t, stem, []shptest.Field{{Name: "name", Type: 'C', Size: 4}}, []string{"A"})
	for _, ext := range []string{".shp", ".dbf"} {
		require.NoError(t, os.Rename(stem+ext, stem+".tmp"))
		require.NoError(t, os.Rename(stem+".tmp", stem+strings.ToUpper(ext)))
	}

	ctx, err := NewServerContext(dir, Settings{Workers: 1})
	require.NoError(t, err)
	require.Len(t, ctx.Datasets, 1)
	assert.Equal(t, "ROADS", ctx.Datasets[0].Name)

	rec := get(NewHandler(ctx), "/datasets/ROADS.geojson")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name": "A"`)
}
