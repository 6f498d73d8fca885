// c4dump prints every entry of one ply's table file as a board grid
// with its score, for eyeballing small runs.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dzsolve/c4table/config"
	"github.com/dzsolve/c4table/plyfile"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	fs := pflag.NewFlagSet("c4dump", pflag.ExitOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	ply := fs.Int("ply", 0, "ply whose table file to print")
	fs.Parse(os.Args[1:])

	cfg := &config.Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("bad-config")
	}
	paths := plyfile.Paths{
		DataPrefix:  cfg.DataPrefix,
		TablePrefix: cfg.TablePrefix,
		Cols:        cfg.NumCols,
		Rows:        cfg.NumRows,
	}

	r, err := plyfile.OpenTable(paths.Table(*ply))
	if err != nil {
		log.Fatal().Err(err).Msg("could-not-open-table")
	}
	defer r.Close()

	for {
		c, score, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatal().Err(err).Msg("read-failed")
		}
		fmt.Print(c.Decompress())
		fmt.Printf("score: %d\n\n", score)
	}
}
