package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/woozymasta/shp2geojson/internal/logger"
	"github.com/woozymasta/shp2geojson/internal/server"
	"github.com/woozymasta/shp2geojson/internal/shapefile"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	Dir         string `short:"d" long:"dir"          env:"DATA_DIR"       description:"Directory with shapefiles to serve" default:"."`
	Addr        string `short:"a" long:"addr"         env:"LISTEN_ADDRESS" description:"Address to listen on"       default:"0.0.0.0"`
	Port        int    `short:"p" long:"port"         env:"LISTEN_PORT"    description:"Port to listen on"          default:"8080"`
	Encoding    string `short:"e" long:"encoding"     env:"ENCODING"       description:"DBF character encoding (default: .cpg or UTF-8)"`
	Pairing     string `long:"pairing"                env:"PAIRING"        description:"Shape/record count mismatch policy" choice:"truncate" choice:"pad" choice:"strict" default:"truncate"`
	Concurrency int    `long:"concurrency"            env:"CONCURRENCY"    description:"Concurrent record conversions (default: number of CPUs)"`
	PreviewSize int    `long:"preview-size"                                description:"Longest preview side in pixels" default:"512"`
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

	// Setup Logging
	opts.Logger.Setup()

	pairing, err := shapefile.ParsePairing(opts.Pairing)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid pairing policy")
	}

	srvCtx, err := server.NewServerContext(opts.Dir, server.Settings{
		Encoding:    opts.Encoding,
		Workers:     opts.Concurrency,
		Pairing:     pairing,
		PreviewSize: opts.PreviewSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	log.Info().
		Str("addr", listenAddr).
		Str("dir", opts.Dir).
		Int("datasets_loaded", len(srvCtx.Datasets)).
		Msg("Web server started")

	if err := http.ListenAndServe(listenAddr, server.NewHandler(srvCtx)); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
