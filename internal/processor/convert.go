package processor

import (
	"errors"
	"time"

	"github.com/woozymasta/shp2geojson/internal/geo"
	"github.com/woozymasta/shp2geojson/internal/shapefile"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// Job describes one dataset conversion.
type Job struct {
	Name     string
	Input    string // path stem, with or without .shp
	Output   string
	Preview  string // optional .webp path
	Encoding string

	Workers int
	Order   Order
	Pairing shapefile.Pairing
	Encode  EncodeOptions
	Sketch  PreviewOptions

	Progress Progress
}

// Report summarizes a finished conversion.
type Report struct {
	Counts   shapefile.Counts
	Pairs    int
	Features int
	Skipped  int
	Warnings int
	Output   string
	Elapsed  time.Duration
}

// Build reads the dataset and converts every record concurrently, returning
// the assembled collection once all units finished.
func Build(job Job) (fc *geo.FeatureCollection, rep *Report, err error) {
	start := time.Now()
	name := job.Name
	if name == "" {
		name = shapefile.Stem(job.Input)
	}

	src, err := shapefile.Open(job.Input, shapefile.Options{Encoding: job.Encoding})
	if err != nil {
		return nil, nil, err
	}
	defer func() { err = multierr.Append(err, src.Close()) }()

	pairs, counts, err := src.Collect(job.Pairing)
	reportCounts(name, counts, err)
	if err != nil {
		return nil, nil, err
	}

	progress := job.Progress
	if progress == nil {
		progress = noProgress{}
	}
	progress.Start(len(pairs))

	res, err := Dispatch(pairs, DispatchOptions{
		Workers:  job.Workers,
		Order:    job.Order,
		Progress: progress,
	})
	progress.Finish()
	if err != nil {
		return nil, nil, err
	}

	rep = &Report{
		Counts:   counts,
		Pairs:    len(pairs),
		Features: len(res.Features),
		Skipped:  res.Skipped,
		Warnings: res.Warnings,
		Elapsed:  time.Since(start),
	}
	return Assemble(res), rep, nil
}

// reportCounts logs the shape and record counts. A read error leaves them
// partial, so nothing is logged then.
func reportCounts(name string, counts shapefile.Counts, err error) {
	var mismatch *shapefile.CountMismatchError
	if err != nil && !errors.As(err, &mismatch) {
		return
	}
	counts.Report(name)
}

// Convert builds the collection and writes it to job.Output, plus the
// optional preview. Nothing is written if any unit fails.
func Convert(job Job) (*Report, error) {
	name := job.Name
	if name == "" {
		name = shapefile.Stem(job.Input)
	}

	fc, rep, err := Build(job)
	if err != nil {
		return nil, err
	}

	if err := WriteDocument(job.Output, fc, job.Encode); err != nil {
		return nil, err
	}
	rep.Output = job.Output

	if job.Preview != "" {
		err := WritePreview(job.Preview, fc.Features, job.Sketch)
		switch {
		case errors.Is(err, ErrNothingToRender):
			log.Warn().Str("dataset", name).Msg("Preview skipped, no geometry")
		case err != nil:
			log.Error().Err(err).Str("path", job.Preview).Msg("Failed to write preview")
		}
	}

	log.Info().
		Str("dataset", name).
		Int("features", rep.Features).
		Int("skipped", rep.Skipped).
		Int("warnings", rep.Warnings).
		Str("output", rep.Output).
		Msg("GeoJSON file has been created")

	return rep, nil
}
