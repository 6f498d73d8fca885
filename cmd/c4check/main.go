// c4check re-derives every entry of one ply's table file with an
// independent forward search four plies past the pruning horizon and
// verifies that the stored score agrees in sign with any decisive
// result. Entries the deeper search still cannot decide are counted but
// not judged.
package main

import (
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dzsolve/c4table/config"
	"github.com/dzsolve/c4table/plyfile"
	"github.com/dzsolve/c4table/position"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	fs := pflag.NewFlagSet("c4check", pflag.ExitOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	ply := fs.Int("ply", 0, "ply whose table file to verify")
	margin := fs.Int("margin", 4, "extra search depth beyond the pruning horizon")
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

	mover := position.SideToMove(*ply)
	depth := cfg.Depth + *margin
	var total, unknown int64
	for {
		c, score, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatal().Err(err).Msg("read-failed")
		}
		pos := c.Decompress()
		switch pos.Evaluate(mover, cfg.NumRows, cfg.NumCols, depth) {
		case position.Win:
			if score <= 0 {
				log.Fatal().Int64("entry", total).Int8("score", score).Msg("inconsistent-win")
			}
		case position.Loss:
			if score >= 0 {
				log.Fatal().Int64("entry", total).Int8("score", score).Msg("inconsistent-loss")
			}
		case position.Draw:
			if score != 0 {
				log.Fatal().Int64("entry", total).Int8("score", score).Msg("inconsistent-draw")
			}
		case position.Unknown:
			unknown++
		}
		total++
	}
	p := message.NewPrinter(language.English)
	p.Printf("%d/%d entries verified (%d beyond the search horizon)\n",
		total-unknown, total, unknown)
}
