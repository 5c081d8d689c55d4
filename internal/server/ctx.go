package server

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/woozymasta/shp2geojson/internal/processor"
	"github.com/woozymasta/shp2geojson/internal/shapefile"

	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
)

// Settings are the conversion defaults applied to every served dataset.
type Settings struct {
	Encoding    string
	Workers     int
	Pairing     shapefile.Pairing
	PreviewSize int
}

// Dataset is a shapefile found in the served directory.
type Dataset struct {
	Name string `json:"name"`
	Stem string `json:"-"`
}

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Dir       string
	Settings  Settings
	Datasets  []Dataset
	IndexHTML []byte

	resolver map[string]string

	mu    sync.Mutex
	cache map[string]cached
}

type cached struct {
	etag string
	body []byte
}

// NewServerContext scans dir for shapefiles that have a matching .dbf, in
// either letter case, and renders the index page.
func NewServerContext(dir string, settings Settings) (*ServerContext, error) {
	log.Info().Str("dir", dir).Msg("Initializing server context")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	resolver := make(map[string]string, len(entries))
	datasets := make([]Dataset, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".shp") {
			continue
		}

		stem := shapefile.Stem(filepath.Join(dir, entry.Name()))
		name := filepath.Base(stem)
		if _, dup := resolver[name]; dup {
			continue
		}

		if _, err := os.Stat(shapefile.Sibling(stem, ".dbf")); err != nil {
			log.Warn().
				Str("dataset", name).
				Msg("Skipping dataset: attribute file not found")
			continue
		}

		resolver[name] = stem
		datasets = append(datasets, Dataset{Name: name, Stem: stem})

		log.Debug().Str("dataset", name).Msg("Dataset added to context")
	}

	sort.Slice(datasets, func(i, j int) bool {
		return datasets[i].Name < datasets[j].Name
	})

	index, err := renderIndex(datasets)
	if err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}

	log.Info().
		Int("datasets_count", len(datasets)).
		Msg("Server context initialized successfully")

	return &ServerContext{
		Dir:       dir,
		Settings:  settings,
		Datasets:  datasets,
		IndexHTML: index,
		resolver:  resolver,
		cache:     make(map[string]cached),
	}, nil
}

// job returns the conversion job for a dataset served over HTTP.
func (s *ServerContext) job(name, stem string) processor.Job {
	return processor.Job{
		Name:     name,
		Input:    stem,
		Encoding: s.Settings.Encoding,
		Workers:  s.Settings.Workers,
		Pairing:  s.Settings.Pairing,
		Sketch:   processor.PreviewOptions{Size: s.Settings.PreviewSize},
	}
}

// lookup returns a cached body when its tag still matches.
func (s *ServerContext) lookup(key, etag string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cache[key]
	if !ok || c.etag != etag {
		return nil, false
	}
	return c.body, true
}

func (s *ServerContext) store(key, etag string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cached{etag: etag, body: body}
}

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Shapefile datasets</title>
  <style>
    body { font-family: sans-serif; margin: 2em auto; max-width: 48em; }
    li { margin: 0.5em 0; }
    a { color: #2255aa; }
    img { display: block; max-width: 16em; border: 1px solid #dddddd; }
  </style>
</head>
<body>
  <h1>Shapefile datasets</h1>
  {{- if .}}
  <ul>
    {{- range .}}
    <li>
      <strong>{{.Name}}</strong>
      <a href="/datasets/{{.Name}}.geojson">GeoJSON</a>
      <a href="/datasets/{{.Name}}.yaml">YAML</a>
      <img src="/datasets/{{.Name}}/preview.webp" alt="{{.Name}} preview" loading="lazy">
    </li>
    {{- end}}
  </ul>
  {{- else}}
  <p>No datasets found.</p>
  {{- end}}
</body>
</html>
`

var indexTmpl = template.Must(template.New("index").Parse(indexTemplate))

func renderIndex(datasets []Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, datasets); err != nil {
		return nil, err
	}

	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)

	out, err := m.String("text/html", buf.String())
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimSpace(out)), nil
}
