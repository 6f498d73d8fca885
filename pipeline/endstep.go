package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dzsolve/c4table/plyfile"
	"github.com/dzsolve/c4table/position"
	"github.com/dzsolve/c4table/tablefile"
)

// endStep scores every position at the terminal ply with a search one
// ply deeper than the pruning horizon and writes the first table file.
// K = rows*cols - depth guarantees the deeper search reaches the end of
// the game, so an Unknown here means the configuration is broken.
func (s *Solver) endStep() error {
	started := time.Now()
	ply := s.cfg.TerminalPly()
	mover := position.SideToMove(ply)
	rows, cols, depth := s.cfg.NumRows, s.cfg.NumCols, s.cfg.Depth

	dataPath := s.paths.Data(ply)
	r, err := plyfile.OpenPositions(dataPath)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := plyfile.CreateTable(s.paths.Table(ply))
	if err != nil {
		return err
	}
	log.Info().
		Int("ply", ply).
		Int64("positions", r.NumPositions()).
		Str("side", mover.String()).
		Msg("scoring-terminal-ply")

	for {
		c, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			w.Close()
			return err
		}
		score := c.Decompress().Score(mover, rows, cols, depth+1)
		if score == position.UnknownScore {
			w.Close()
			return fmt.Errorf("%w: terminal ply %d, %s to move\n%s",
				tablefile.ErrInconclusiveSearch, ply, mover, c.Decompress())
		}
		if err := w.WriteEntry(c, int8(score)); err != nil {
			w.Close()
			return err
		}
		if w.Count()%s.cfg.ChunkSize == 0 {
			log.Info().Int64("positions", w.Count()).Msg("evaluated-positions")
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := os.Remove(dataPath); err != nil {
		return err
	}
	log.Info().
		Int("ply", ply).
		Int64("positions", w.Count()).
		Str("xxhash", fmt.Sprintf("%016x", w.Sum64())).
		Msg("end-step-done")
	return s.recordPhase("end-step", ply, w.Count(), w.Count()*plyfile.EntrySize, w.Sum64(), started)
}
