// Package pipeline drives the retrograde solve: seed the empty board,
// expand ply by ply through external-memory chunk/merge passes, score
// the terminal ply with a shallow search, then propagate exact scores
// back to the start. Phases run in strict order; every error aborts the
// run and leaves partial files on disk for inspection.
package pipeline

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dzsolve/c4table/config"
	"github.com/dzsolve/c4table/manifest"
	"github.com/dzsolve/c4table/plyfile"
)

// Solver owns one run over one board configuration.
type Solver struct {
	cfg   *config.Config
	paths plyfile.Paths
	man   *manifest.Manifest
}

// New creates a solver for the given configuration.
func New(cfg *config.Config) *Solver {
	return &Solver{
		cfg: cfg,
		paths: plyfile.Paths{
			DataPrefix:  cfg.DataPrefix,
			TablePrefix: cfg.TablePrefix,
			Cols:        cfg.NumCols,
			Rows:        cfg.NumRows,
		},
	}
}

// SetManifest attaches an optional run manifest; phases record their
// stats into it.
func (s *Solver) SetManifest(m *manifest.Manifest) { s.man = m }

// Run executes the whole pipeline. On success every ply from 0 to the
// terminal ply has a table file; all data and chunk files are gone.
func (s *Solver) Run() error {
	start := time.Now()
	terminal := s.cfg.TerminalPly()
	log.Info().
		Int("cols", s.cfg.NumCols).
		Int("rows", s.cfg.NumRows).
		Int("depth", s.cfg.Depth).
		Int("terminal-ply", terminal).
		Msg("starting-run")

	if err := s.zeroStep(); err != nil {
		return err
	}
	for ply := 0; ply < terminal; ply++ {
		if err := s.expandStep(ply); err != nil {
			return err
		}
		if err := s.mergeStep(ply + 1); err != nil {
			return err
		}
	}
	if err := s.endStep(); err != nil {
		return err
	}
	for ply := terminal; ply > 0; ply-- {
		if err := s.backStep(ply); err != nil {
			return err
		}
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("run-complete")
	return nil
}

// recordPhase writes one manifest row if a manifest is attached.
func (s *Solver) recordPhase(phase string, ply int, positions, bytes int64, checksum uint64, started time.Time) error {
	if s.man == nil {
		return nil
	}
	return s.man.RecordPhase(phase, ply, positions, bytes, checksum, time.Since(started))
}
