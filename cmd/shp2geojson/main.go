package main

import (
	"os"
	"path/filepath"

	"github.com/woozymasta/shp2geojson/internal/config"
	"github.com/woozymasta/shp2geojson/internal/logger"
	"github.com/woozymasta/shp2geojson/internal/processor"
	"github.com/woozymasta/shp2geojson/internal/shapefile"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string   `short:"c" long:"config"       env:"CONFIG_FILE"  description:"Path to configuration file with datasets"`
	Limit       []string `short:"l" long:"limit"        env:"LIMIT_NAMES"  description:"Limit processing to specific dataset names"`
	Input       string   `short:"i" long:"in"           env:"INPUT"        description:"Input shapefile path, with or without .shp"`
	Output      string   `short:"o" long:"out"          env:"OUTPUT"       description:"Output file path (default: input stem with .geojson)"`
	Preview     string   `short:"P" long:"preview"                         description:"Also render a WebP preview to this path"`
	Format      string   `short:"f" long:"format"       env:"FORMAT"       description:"Output format" choice:"json" choice:"yaml" default:"json"`
	Encoding    string   `short:"e" long:"encoding"     env:"ENCODING"     description:"DBF character encoding (default: .cpg or UTF-8)"`
	Pairing     string   `long:"pairing"                env:"PAIRING"      description:"Shape/record count mismatch policy" choice:"truncate" choice:"pad" choice:"strict" default:"truncate"`
	Order       string   `long:"order"                  env:"ORDER"        description:"Feature order" choice:"file" choice:"completion" default:"file"`
	Concurrency int      `short:"p" long:"concurrency"  env:"CONCURRENCY"  description:"Concurrent record conversions (default: number of CPUs)"`
	PreviewSize int      `long:"preview-size"                              description:"Longest preview side in pixels" default:"1024"`
	Compact     bool     `long:"compact"                                   description:"Write JSON without indentation"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	switch {
	case opts.ConfigFile != "":
		runConfig(opts)
	case opts.Input != "":
		runSingle(opts)
	default:
		log.Fatal().Msg("Either --in or --config is required")
	}
}

func runSingle(opts Options) {
	job, err := singleJob(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid options")
	}

	if _, err := processor.Convert(job); err != nil {
		log.Fatal().Err(err).Str("input", opts.Input).Msg("Conversion failed")
	}
}

func singleJob(opts Options) (processor.Job, error) {
	format, err := processor.ParseFormat(opts.Format)
	if err != nil {
		return processor.Job{}, err
	}
	pairing, err := shapefile.ParsePairing(opts.Pairing)
	if err != nil {
		return processor.Job{}, err
	}
	order, err := processor.ParseOrder(opts.Order)
	if err != nil {
		return processor.Job{}, err
	}

	stem := shapefile.Stem(opts.Input)
	output := opts.Output
	if output == "" {
		output = stem + format.Ext()
	}
	name := filepath.Base(stem)

	return processor.Job{
		Name:     name,
		Input:    stem,
		Output:   output,
		Preview:  opts.Preview,
		Encoding: opts.Encoding,
		Workers:  opts.Concurrency,
		Order:    order,
		Pairing:  pairing,
		Encode:   processor.EncodeOptions{Format: format, Compact: opts.Compact},
		Sketch:   processor.PreviewOptions{Size: opts.PreviewSize},
		Progress: processor.NewLogProgress(name),
	}, nil
}

func runConfig(opts Options) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if opts.Concurrency > 0 {
		cfg.Workers = opts.Concurrency
	}

	datasets, unknown := cfg.Select(opts.Limit)
	for _, name := range unknown {
		log.Error().
			Str("name", name).
			Msg("Dataset specified in --limit not found in configuration")
	}

	log.Info().
		Int("datasets_total", len(cfg.Datasets)).
		Int("datasets_queued", len(datasets)).
		Msg("Starting conversion")

	failed := 0
	for _, ds := range datasets {
		job, err := cfg.Job(ds)
		if err != nil {
			log.Error().Err(err).Str("dataset", ds.Name).Msg("Invalid dataset")
			failed++
			continue
		}
		job.Progress = processor.NewLogProgress(ds.Name)

		if _, err := processor.Convert(job); err != nil {
			log.Error().Err(err).Str("dataset", ds.Name).Msg("Failed to convert dataset")
			failed++
		}
	}

	if failed > 0 {
		log.Fatal().Int("failed", failed).Msg("Some datasets were not converted")
	}
	log.Info().Msg("Conversion finished successfully")
}
