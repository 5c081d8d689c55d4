package processor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/woozymasta/shp2geojson/internal/geo"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleCollection() *geo.FeatureCollection {
	return Assemble(&Result{Features: []*geo.Feature{
		geo.NewFeature(geojson.NewGeometry(orb.Point{139.7, 35.6}), geojson.Properties{
			"name":  "Tokyo",
			"code":  "",
			"note":  nil,
			"count": 12.0,
		}),
	}})
}

func TestEncodeJSON(t *testing.T) {
	pretty, err := Encode(sampleCollection(), EncodeOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pretty), "{\n  \"type\": \"FeatureCollection\",\n  \"bbox\": null,"))

	compact, err := Encode(sampleCollection(), EncodeOptions{Compact: true})
	require.NoError(t, err)
	assert.NotContains(t, string(compact), "\n")
	assert.JSONEq(t, string(pretty), string(compact))
}

func TestEncodeYAML(t *testing.T) {
	data, err := Encode(sampleCollection(), EncodeOptions{Format: FormatYAML})
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "type: FeatureCollection")
	assert.Contains(t, text, "coordinates: [139.7, 35.6]")
	assert.Contains(t, text, `code: ""`)

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Nil(t, back["bbox"])
	features := back["features"].([]any)
	require.Len(t, features, 1)
	props := features[0].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "Tokyo", props["name"])
	assert.Equal(t, "", props["code"])
	assert.Nil(t, props["note"])
}

func TestAssembleNil(t *testing.T) {
	fc := Assemble(nil)
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Empty(t, fc.Features)
}

func TestWriteDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.geojson")

	require.NoError(t, WriteDocument(path, sampleCollection(), EncodeOptions{}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Tokyo"`)
}

func TestWriteDocumentFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := WriteDocument(filepath.Join(blocker, "out.geojson"), sampleCollection(), EncodeOptions{})
	var we *OutputWriteError
	assert.ErrorAs(t, err, &we)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YAML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
