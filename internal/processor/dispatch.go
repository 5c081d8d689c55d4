// Package processor converts shapefile datasets into GeoJSON documents.
package processor

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/woozymasta/shp2geojson/internal/attribute"
	"github.com/woozymasta/shp2geojson/internal/geo"
	"github.com/woozymasta/shp2geojson/internal/shapefile"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Order selects how finished features are gathered.
type Order int

const (
	// OrderFile keeps features in the order of the source records. Each unit
	// writes into its own slot of a pre-sized slice.
	OrderFile Order = iota
	// OrderCompletion collects features as units finish, through a channel
	// drained by a single consumer.
	OrderCompletion
)

func (o Order) String() string {
	if o == OrderCompletion {
		return "completion"
	}
	return "file"
}

// ParseOrder parses an order name. Empty means file order.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(s) {
	case "", "file":
		return OrderFile, nil
	case "completion":
		return OrderCompletion, nil
	}
	return OrderFile, fmt.Errorf("unknown order %q", s)
}

// DispatchOptions controls the fan-out.
type DispatchOptions struct {
	// Workers bounds concurrent units. Zero or less uses runtime.NumCPU().
	Workers  int
	Order    Order
	Progress Progress
}

// Result is what the units produced.
type Result struct {
	Features []*geo.Feature
	// Skipped counts pairs with unsupported shapes.
	Skipped int
	// Warnings counts attribute cells kept as raw text.
	Warnings int
	// Failed counts units that returned an error.
	Failed int
}

// Dispatch runs one unit per pair, at most Workers at a time, and waits for
// all of them. The first unit error is returned after every unit finished;
// features from the other units are kept in the result.
func Dispatch(pairs []shapefile.Pair, opts DispatchOptions) (*Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	progress := opts.Progress
	if progress == nil {
		progress = noProgress{}
	}

	var (
		g        errgroup.Group
		skipped  atomic.Int64
		warnings atomic.Int64
		failed   atomic.Int64
	)
	g.SetLimit(workers)

	run := func(p shapefile.Pair, deliver func(*geo.Feature)) func() error {
		return func() error {
			defer progress.Add(1)

			f, warns, err := buildFeature(p)
			warnings.Add(int64(warns))
			if err != nil {
				failed.Add(1)
				return &UnitError{Index: p.Index, Err: err}
			}
			if f == nil {
				skipped.Add(1)
				return nil
			}
			deliver(f)
			return nil
		}
	}

	var features []*geo.Feature
	var err error

	switch opts.Order {
	case OrderCompletion:
		results := make(chan *geo.Feature, workers)
		var collected sync.WaitGroup
		collected.Add(1)
		go func() {
			defer collected.Done()
			for f := range results {
				features = append(features, f)
			}
		}()

		for _, p := range pairs {
			g.Go(run(p, func(f *geo.Feature) { results <- f }))
		}
		err = g.Wait()
		close(results)
		collected.Wait()

	default:
		slots := make([]*geo.Feature, len(pairs))
		for i, p := range pairs {
			g.Go(run(p, func(f *geo.Feature) { slots[i] = f }))
		}
		err = g.Wait()

		features = make([]*geo.Feature, 0, len(slots))
		for _, f := range slots {
			if f != nil {
				features = append(features, f)
			}
		}
	}

	return &Result{
		Features: features,
		Skipped:  int(skipped.Load()),
		Warnings: int(warnings.Load()),
		Failed:   int(failed.Load()),
	}, err
}

// buildFeature converts one pair. A nil feature with a nil error means the
// shape kind is not supported.
func buildFeature(p shapefile.Pair) (*geo.Feature, int, error) {
	g, err := geo.MapShape(p.Shape)
	if errors.Is(err, geo.ErrUnsupportedShape) {
		log.Trace().Int("record", p.Index).Str("type", p.Shape.TypeName).Msg("Skipping unsupported shape")
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	if err := geo.CheckFinite(g); err != nil {
		return nil, 0, &SerializationError{Err: err}
	}

	warns := 0
	props := make(geojson.Properties, len(p.Record))
	for _, cell := range p.Record {
		v, warn := attribute.Decode(cell.Field, cell.Value)
		if warn != nil {
			warns++
			log.Warn().Err(warn).Int("record", p.Index).Msg("Failed to parse value, keeping text")
		}
		props[cell.Field] = v
	}

	return geo.NewFeature(geojson.NewGeometry(g), props), warns, nil
}
