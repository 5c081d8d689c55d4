package main

import (
	"encoding/json"
	"os"

	"github.com/woozymasta/shp2geojson/internal/logger"
	"github.com/woozymasta/shp2geojson/internal/shapefile"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	Encoding string `short:"e" long:"encoding" env:"ENCODING" description:"DBF character encoding (default: .cpg or UTF-8)"`
	Format   string `short:"f" long:"format"   description:"Output format" choice:"json" choice:"yaml" default:"yaml"`

	Args struct {
		Inputs []string `positional-arg-name:"input" description:"Shapefile paths, with or without .shp" required:"1"`
	} `positional-args:"yes"`
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

	inventories := make([]*shapefile.Inventory, 0, len(opts.Args.Inputs))
	for _, input := range opts.Args.Inputs {
		inv, err := shapefile.CountFiles(input, shapefile.Options{Encoding: opts.Encoding})
		if err != nil {
			log.Fatal().Err(err).Str("input", input).Msg("Failed to read shapefile")
		}
		inv.Counts.Report(inv.Path)
		inventories = append(inventories, inv)
	}

	var err error
	if opts.Format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(inventories)
	} else {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		err = enc.Encode(inventories)
		if err == nil {
			err = enc.Close()
		}
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to write summary")
	}
}
