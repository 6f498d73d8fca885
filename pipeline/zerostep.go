package pipeline

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dzsolve/c4table/plyfile"
	"github.com/dzsolve/c4table/position"
)

// zeroStep seeds the ply-0 data file with the single compressed empty
// position. It refuses to run over a previous run's output.
func (s *Solver) zeroStep() error {
	started := time.Now()
	path := s.paths.Data(0)
	if err := plyfile.AssertAbsent(path); err != nil {
		return err
	}
	w, err := plyfile.CreatePositions(path)
	if err != nil {
		return err
	}
	if err := w.Write(position.EmptyBoard); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	log.Info().Str("file", path).Msg("seeded-empty-position")
	return s.recordPhase("zero-step", 0, 1, plyfile.PositionSize, w.Sum64(), started)
}
