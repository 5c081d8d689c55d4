package processor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/woozymasta/shp2geojson/internal/geo"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Format is the output document syntax.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	}
	return FormatJSON, fmt.Errorf("unknown format %q", s)
}

// Ext returns the file extension for documents in this format.
func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".geojson"
}

// ContentType returns the media type for documents in this format.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/geo+json"
}

// EncodeOptions controls document serialization.
type EncodeOptions struct {
	Format Format
	// Compact disables JSON indentation.
	Compact bool
}

// Assemble wraps the features of a finished dispatch into the output document.
func Assemble(res *Result) *geo.FeatureCollection {
	if res == nil {
		return geo.NewFeatureCollection(nil)
	}
	return geo.NewFeatureCollection(res.Features)
}

// Encode serializes the collection. JSON is pretty-printed with two-space
// indentation unless Compact is set.
func Encode(fc *geo.FeatureCollection, opts EncodeOptions) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if opts.Compact && opts.Format != FormatYAML {
		data, err = json.Marshal(fc)
	} else {
		data, err = json.MarshalIndent(fc, "", "  ")
	}
	if err != nil {
		return nil, &SerializationError{Err: err}
	}

	if opts.Format == FormatYAML {
		data, err = jsonToYAML(data)
		if err != nil {
			return nil, &SerializationError{Err: err}
		}
	}

	return data, nil
}

// jsonToYAML re-encodes a JSON document as block-style YAML, keeping
// sequences of scalars (coordinate pairs) inline.
func jsonToYAML(data []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	restyle(&doc)
	return yaml.Marshal(&doc)
}

func restyle(n *yaml.Node) {
	switch n.Kind {
	case yaml.ScalarNode:
		n.Style = 0
		return
	case yaml.SequenceNode:
		n.Style = yaml.FlowStyle
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				n.Style = 0
				break
			}
		}
	default:
		n.Style = 0
	}
	for _, c := range n.Content {
		restyle(c)
	}
}

// WriteDocument encodes the collection and writes it to path, creating
// parent directories as needed.
func WriteDocument(path string, fc *geo.FeatureCollection, opts EncodeOptions) (err error) {
	data, err := Encode(fc, opts)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &OutputWriteError{Path: path, Err: err}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return &OutputWriteError{Path: path, Err: err}
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", path).Msg("Failed to close file")
			err = multierr.Append(err, &OutputWriteError{Path: path, Err: closeErr})
		}
	}()

	if _, err := f.Write(data); err != nil {
		return &OutputWriteError{Path: path, Err: err}
	}
	return nil
}
