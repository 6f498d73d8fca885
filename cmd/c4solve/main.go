package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dzsolve/c4table/config"
	"github.com/dzsolve/c4table/manifest"
	"github.com/dzsolve/c4table/pipeline"
)

func main() {
	cfg := &config.Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	output.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(output).Level(level).With().Timestamp().Logger()

	solver := pipeline.New(cfg)
	if cfg.ManifestPath != "" {
		man, err := manifest.Open(cfg.ManifestPath)
		if err != nil {
			log.Fatal().Err(err).Msg("could-not-open-manifest")
		}
		defer man.Close()
		solver.SetManifest(man)
	}
	if err := solver.Run(); err != nil {
		log.Fatal().Err(err).Msg("run-failed")
	}
}
