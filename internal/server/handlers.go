// Package server serves converted shapefile datasets over HTTP.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/woozymasta/shp2geojson/internal/processor"
	"github.com/woozymasta/shp2geojson/internal/shapefile"

	"github.com/rs/zerolog/log"
)

const etagCap = 64

// HandleDatasetsList serves the inventory of every dataset as JSON.
func (s *ServerContext) HandleDatasetsList(w http.ResponseWriter, r *http.Request) {
	list := make([]*shapefile.Inventory, 0, len(s.Datasets))
	for _, ds := range s.Datasets {
		inv, err := shapefile.CountFiles(ds.Stem, shapefile.Options{Encoding: s.Settings.Encoding})
		if err != nil {
			log.Warn().Err(err).Str("dataset", ds.Name).Msg("Dataset unreadable, omitted from list")
			continue
		}
		inv.Path = ds.Name
		list = append(list, inv)
	}

	w.Header().Set("Content-Type", "application/json")
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(list)
}

// HandleIndex serves the HTML dataset index.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	etag := fmt.Sprintf(`"%x"`, len(s.IndexHTML))

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

// HandleDataset serves a converted dataset or its preview.
func (s *ServerContext) HandleDataset(w http.ResponseWriter, r *http.Request) {
	// Path: /datasets/{name}.geojson | /datasets/{name}.yaml | /datasets/{name}/preview.webp
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case len(parts) == 2:
		file := parts[1]
		for _, format := range []processor.Format{processor.FormatJSON, processor.FormatYAML} {
			if name, ok := strings.CutSuffix(file, format.Ext()); ok {
				s.serveDocument(w, r, name, format)
				return
			}
		}
	case len(parts) == 3 && parts[2] == "preview.webp":
		s.servePreview(w, r, parts[1])
		return
	}

	http.NotFound(w, r)
}

func (s *ServerContext) serveDocument(w http.ResponseWriter, r *http.Request, name string, format processor.Format) {
	s.serveConverted(w, r, name, string(format), format.ContentType(), func(job processor.Job) ([]byte, error) {
		fc, _, err := processor.Build(job)
		if err != nil {
			return nil, err
		}
		return processor.Encode(fc, processor.EncodeOptions{Format: format})
	})
}

func (s *ServerContext) servePreview(w http.ResponseWriter, r *http.Request, name string) {
	s.serveConverted(w, r, name, "webp", "image/webp", func(job processor.Job) ([]byte, error) {
		fc, _, err := processor.Build(job)
		if err != nil {
			return nil, err
		}
		img, err := processor.RenderPreview(fc.Features, job.Sketch)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := processor.EncodePreview(&buf, img, job.Sketch); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

// serveConverted answers from the cache while the source files are unchanged
// and converts on demand otherwise.
func (s *ServerContext) serveConverted(
	w http.ResponseWriter,
	r *http.Request,
	name, variant, contentType string,
	convert func(processor.Job) ([]byte, error),
) {
	stem, ok := s.resolver[name]
	if !ok {
		http.NotFound(w, r)
		return
	}

	etag, err := datasetETag(stem, variant)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	// check If-None-Match (client sent ETag)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	key := name + "/" + variant
	body, ok := s.lookup(key, etag)
	if !ok {
		body, err = convert(s.job(name, stem))
		if err != nil {
			status := statusFor(err)
			log.Error().Err(err).Str("dataset", name).Int("status", status).Msg("Failed to convert dataset")
			http.Error(w, err.Error(), status)
			return
		}
		s.store(key, etag, body)
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}

// datasetETag derives a tag from the size and modification time of both files.
func datasetETag(stem, variant string) (string, error) {
	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	for i, ext := range []string{".shp", ".dbf"} {
		path := shapefile.Sibling(stem, ext)
		info, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory", path)
		}
		if i > 0 {
			buf = append(buf, '-')
		}
		buf = strconv.AppendInt(buf, info.Size(), 16)
		buf = append(buf, '-')
		buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	}
	buf = append(buf, '-')
	buf = append(buf, variant...)
	buf = append(buf, '"')
	return string(buf), nil
}

func statusFor(err error) int {
	var mismatch *shapefile.CountMismatchError
	switch {
	case errors.Is(err, shapefile.ErrInputNotFound):
		return http.StatusNotFound
	case errors.As(err, &mismatch):
		return http.StatusConflict
	case errors.Is(err, shapefile.ErrInputCorrupt), errors.Is(err, processor.ErrNothingToRender):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// NewHandler wires the routes behind the request logger.
func NewHandler(s *ServerContext) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/datasets", s.HandleDatasetsList)
	mux.HandleFunc("/datasets/", s.HandleDataset)
	mux.HandleFunc("/", s.HandleIndex)

	return RequestLogger(mux)
}
