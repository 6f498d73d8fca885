package pipeline

import (
	"errors"
	"io"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dzsolve/c4table/plyfile"
	"github.com/dzsolve/c4table/position"
)

// batchSize is how many parents are pulled off the input stream at a
// time; the unit of work handed to expansion workers.
const batchSize = 1 << 16

// expandStep generates the frontier of ply+1 from the sorted ply file.
// Each parent's legal successors are evaluated with the shallow
// pruning search; only Unknown children enter a chunk. Every decisive
// child is recomputable on demand during back-propagation, which is
// exactly what makes the table lookup miss path sound.
func (s *Solver) expandStep(ply int) error {
	started := time.Now()
	mover := position.SideToMove(ply)
	r, err := plyfile.OpenPositions(s.paths.Data(ply))
	if err != nil {
		return err
	}
	defer r.Close()
	log.Info().
		Int("ply", ply).
		Int64("parents", r.NumPositions()).
		Str("side", mover.String()).
		Msg("expanding-ply")

	var (
		children         []position.Compressed
		parents          int64
		parentsUnflushed int64
		kept             int64
		chunk            int
	)
	batch := make([]position.Compressed, 0, batchSize)
	for {
		batch = batch[:0]
		for int64(len(batch)) < batchSize {
			c, err := r.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			batch = append(batch, c)
		}
		if len(batch) == 0 {
			break
		}
		out, err := s.expandBatch(batch, mover)
		if err != nil {
			return err
		}
		children = append(children, out...)
		parents += int64(len(batch))
		parentsUnflushed += int64(len(batch))
		if parentsUnflushed >= s.cfg.ChunkSize {
			log.Info().Int64("parents", parents).Msg("expanded-positions")
			n, err := s.flushChunk(children, ply+1, chunk)
			if err != nil {
				return err
			}
			kept += n
			children = children[:0]
			parentsUnflushed = 0
			chunk++
		}
	}
	if len(children) > 0 {
		n, err := s.flushChunk(children, ply+1, chunk)
		if err != nil {
			return err
		}
		kept += n
		chunk++
	}
	log.Info().
		Int64("parents", parents).
		Int64("kept-children", kept).
		Int("chunks", chunk).
		Msg("expansion-done")
	return s.recordPhase("expand", ply, kept, kept*plyfile.PositionSize, 0, started)
}

// expandBatch evaluates one batch of parents, sharded over the
// configured workers. Child order within the batch is irrelevant: every
// chunk is sorted before it is written.
func (s *Solver) expandBatch(batch []position.Compressed, mover position.Player) ([]position.Compressed, error) {
	rows, cols, depth := s.cfg.NumRows, s.cfg.NumCols, s.cfg.Depth
	if s.cfg.Workers == 1 || len(batch) < s.cfg.Workers {
		return expandParents(batch, mover, rows, cols, depth), nil
	}
	shards := make([][]position.Compressed, s.cfg.Workers)
	var g errgroup.Group
	per := (len(batch) + s.cfg.Workers - 1) / s.cfg.Workers
	for w := 0; w < s.cfg.Workers; w++ {
		lo := w * per
		hi := min(lo+per, len(batch))
		if lo >= hi {
			break
		}
		g.Go(func() error {
			shards[w] = expandParents(batch[lo:hi], mover, rows, cols, depth)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.Concat(shards...), nil
}

// expandParents generates and filters the children of a slice of
// parents.
func expandParents(parents []position.Compressed, mover position.Player, rows, cols, depth int) []position.Compressed {
	out := make([]position.Compressed, 0, len(parents)*cols/2)
	for _, c := range parents {
		pos := c.Decompress()
		for col := 0; col < cols; col++ {
			next := pos.Move(mover, col, rows)
			if next.IsEmpty() {
				continue
			}
			if next.Evaluate(mover.Other(), rows, cols, depth) == position.Unknown {
				out = append(out, position.Compress(next))
			}
		}
	}
	return out
}

// flushChunk sorts and dedups the buffered children and writes them as
// one chunk file. Returns the number of unique positions written.
func (s *Solver) flushChunk(children []position.Compressed, ply, chunk int) (int64, error) {
	slices.Sort(children)
	children = slices.Compact(children)
	path := s.paths.Chunk(ply, chunk)
	w, err := plyfile.CreatePositions(path)
	if err != nil {
		return 0, err
	}
	for _, c := range children {
		if err := w.Write(c); err != nil {
			w.Close()
			return 0, err
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	log.Info().Str("file", path).Int64("positions", w.Count()).Msg("wrote-chunk")
	return w.Count(), nil
}
