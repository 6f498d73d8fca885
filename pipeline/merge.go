package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dzsolve/c4table/plyfile"
	"github.com/dzsolve/c4table/position"
)

// chunkFront is one open chunk file with its lookahead position.
type chunkFront struct {
	r     *plyfile.PositionReader
	front position.Compressed
}

// advance refills the front. Returns false at EOF, with the reader
// closed.
func (c *chunkFront) advance() (bool, error) {
	next, err := c.r.Next()
	if errors.Is(err, io.EOF) {
		return false, c.r.Close()
	}
	if err != nil {
		c.r.Close()
		return false, err
	}
	c.front = next
	return true, nil
}

// mergeStep merges all chunk files of a ply into its single data file.
// Each chunk is sorted and unique, so repeatedly emitting the minimum
// front and advancing every front equal to it yields a strictly
// ascending, duplicate-free output without any extra bookkeeping. The
// front scan is linear; chunk counts stay small enough that a heap
// would not pay for itself.
func (s *Solver) mergeStep(ply int) error {
	started := time.Now()
	var fronts []*chunkFront
	var paths []string
	for i := 0; ; i++ {
		path := s.paths.Chunk(ply, i)
		r, err := plyfile.OpenPositions(path)
		if errors.Is(err, plyfile.ErrMissing) {
			break
		}
		if err != nil {
			return err
		}
		paths = append(paths, path)
		cf := &chunkFront{r: r}
		ok, err := cf.advance()
		if err != nil {
			return err
		}
		if ok {
			fronts = append(fronts, cf)
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("no chunk files to merge for ply %d", ply)
	}
	total := lo.SumBy(fronts, func(c *chunkFront) int64 { return c.r.NumPositions() })
	log.Info().
		Int("ply", ply).
		Int("chunks", len(paths)).
		Int64("positions", total).
		Msg("merging-chunks")

	w, err := plyfile.CreatePositions(s.paths.Data(ply))
	if err != nil {
		return err
	}
	for len(fronts) > 0 {
		minPos := fronts[0].front
		for _, c := range fronts[1:] {
			if c.front < minPos {
				minPos = c.front
			}
		}
		if err := w.Write(minPos); err != nil {
			w.Close()
			return err
		}
		for i := 0; i < len(fronts); i++ {
			if fronts[i].front != minPos {
				continue
			}
			ok, err := fronts[i].advance()
			if err != nil {
				w.Close()
				return err
			}
			if !ok {
				fronts = append(fronts[:i], fronts[i+1:]...)
				i--
			}
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	log.Info().
		Int("ply", ply).
		Int64("positions", w.Count()).
		Str("xxhash", fmt.Sprintf("%016x", w.Sum64())).
		Msg("merge-done")
	return s.recordPhase("merge", ply, w.Count(), w.Count()*plyfile.PositionSize, w.Sum64(), started)
}
