package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dzsolve/c4table/plyfile"
	"github.com/dzsolve/c4table/position"
	"github.com/dzsolve/c4table/tablefile"
)

// backStep propagates scores from the ply table to the ply-1 table.
// Parents stream out of the ply-1 data file in ascending order; each
// parent's children are looked up in the memory-mapped child table and
// combined. The mapping is released before the function returns, so two
// adjacent tables are never mapped at once across iterations.
func (s *Solver) backStep(ply int) error {
	started := time.Now()
	mover := position.SideToMove(ply - 1)
	log.Info().
		Int("from-ply", ply).
		Int("to-ply", ply-1).
		Str("side", mover.String()).
		Msg("back-propagating")

	tab, err := tablefile.Open(s.paths.Table(ply))
	if err != nil {
		return err
	}
	defer tab.Close()
	dataPath := s.paths.Data(ply - 1)
	r, err := plyfile.OpenPositions(dataPath)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := plyfile.CreateTable(s.paths.Table(ply - 1))
	if err != nil {
		return err
	}

	batch := make([]position.Compressed, 0, batchSize)
	scores := make([]int, batchSize)
	for {
		batch = batch[:0]
		for len(batch) < batchSize {
			c, err := r.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				w.Close()
				return err
			}
			batch = append(batch, c)
		}
		if len(batch) == 0 {
			break
		}
		if err := s.scoreBatch(tab, batch, scores, mover); err != nil {
			w.Close()
			return err
		}
		for i, c := range batch {
			if err := w.WriteEntry(c, int8(scores[i])); err != nil {
				w.Close()
				return err
			}
		}
		if w.Count()%s.cfg.ChunkSize < int64(len(batch)) {
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
		Int("ply", ply-1).
		Int64("positions", w.Count()).
		Str("xxhash", fmt.Sprintf("%016x", w.Sum64())).
		Msg("back-step-done")
	return s.recordPhase("back-step", ply-1, w.Count(), w.Count()*plyfile.EntrySize, w.Sum64(), started)
}

// scoreBatch fills scores[:len(batch)] with the combined child scores
// of each parent, sharded over the configured workers. Lookups against
// the mapped table are read-only, so shards share it freely.
func (s *Solver) scoreBatch(tab *tablefile.Table, batch []position.Compressed, scores []int, mover position.Player) error {
	rows, cols, depth := s.cfg.NumRows, s.cfg.NumCols, s.cfg.Depth
	if s.cfg.Workers == 1 || len(batch) < s.cfg.Workers {
		for i, c := range batch {
			sc, err := tab.EvaluateChildren(c, mover, rows, cols, depth)
			if err != nil {
				return err
			}
			scores[i] = sc
		}
		return nil
	}
	var g errgroup.Group
	per := (len(batch) + s.cfg.Workers - 1) / s.cfg.Workers
	for wkr := 0; wkr < s.cfg.Workers; wkr++ {
		lo := wkr * per
		hi := min(lo+per, len(batch))
		if lo >= hi {
			break
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				sc, err := tab.EvaluateChildren(batch[i], mover, rows, cols, depth)
				if err != nil {
					return err
				}
				scores[i] = sc
			}
			return nil
		})
	}
	return g.Wait()
}
