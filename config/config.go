// Package config loads solver settings from flags, environment
// variables (C4TABLE_ prefix) and defaults, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pbnjay/memory"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every knob of a solver run.
type Config struct {
	// Board geometry. Columns 1..8, rows 1..7; the row-7 sentinel and
	// the 8-column byte layout cap both.
	NumCols int `mapstructure:"cols"`
	NumRows int `mapstructure:"rows"`

	// Depth is the shallow search horizon used to prune the frontier.
	// The terminal ply is rows*cols - depth.
	Depth int `mapstructure:"depth"`

	// ChunkSize is the number of parents expanded per in-memory chunk.
	// 0 means derive it from physical RAM.
	ChunkSize int64 `mapstructure:"chunk-size"`

	// Workers bounds the goroutines used inside the expansion and
	// back-step loops. 1 reproduces the sequential reference run.
	Workers int `mapstructure:"workers"`

	DataPrefix  string `mapstructure:"data-prefix"`
	TablePrefix string `mapstructure:"table-prefix"`

	// ManifestPath, when set, records one SQLite row per phase.
	ManifestPath string `mapstructure:"manifest"`

	Debug bool `mapstructure:"debug"`
}

// Load parses args and merges them over environment variables and
// defaults.
func (c *Config) Load(args []string) error {
	fs := pflag.NewFlagSet("c4table", pflag.ContinueOnError)
	// Tools layer their own flags (e.g. --ply) over this shared set.
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Int("cols", 7, "number of board columns (1-8)")
	fs.Int("rows", 6, "number of board rows (1-7)")
	fs.Int("depth", 2, "shallow search depth used for pruning")
	fs.Int64("chunk-size", 0, "parents per expansion chunk; 0 sizes from RAM")
	fs.Int("workers", 1, "worker goroutines for expansion and back-step")
	fs.String("data-prefix", "./C4DATA-", "path prefix for ply data and chunk files")
	fs.String("table-prefix", "./C4TABLE-", "path prefix for table files")
	fs.String("manifest", "", "optional sqlite file recording per-phase stats")
	fs.Bool("debug", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	v := viper.New()
	v.SetEnvPrefix("C4TABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return err
	}
	if err := v.Unmarshal(c); err != nil {
		return err
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = defaultChunkSize()
	}
	return c.Validate()
}

// Validate checks the geometry and sizing constraints.
func (c *Config) Validate() error {
	if c.NumCols < 1 || c.NumCols > 8 {
		return fmt.Errorf("cols must be 1-8, got %d", c.NumCols)
	}
	if c.NumRows < 1 || c.NumRows > 7 {
		return fmt.Errorf("rows must be 1-7, got %d", c.NumRows)
	}
	if c.Depth < 1 {
		return errors.New("depth must be at least 1")
	}
	if c.TerminalPly() < 1 {
		return fmt.Errorf("depth %d leaves no plies to solve on a %dx%d board",
			c.Depth, c.NumCols, c.NumRows)
	}
	if c.ChunkSize < 1 {
		return errors.New("chunk-size must be positive")
	}
	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	return nil
}

// TerminalPly returns K, the last ply whose positions are stored before
// leaf scoring takes over.
func (c *Config) TerminalPly() int {
	return c.NumRows*c.NumCols - c.Depth
}

// defaultChunkSize sizes the expansion buffer from physical RAM. A
// chunk of n parents buffers up to cols children apiece at 8 bytes
// each, and the sort wants headroom, so budget a quarter of RAM.
func defaultChunkSize() int64 {
	total := memory.TotalMemory()
	if total == 0 {
		return 10_000_000
	}
	n := int64(total / 4 / (8 * 8))
	if n < 1_000_000 {
		n = 1_000_000
	}
	return n
}
