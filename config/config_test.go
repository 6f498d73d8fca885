package config

import (
	"testing"

	"github.com/matryer/is"
)

func TestDefaults(t *testing.T) {
	is := is.New(t)
	var c Config
	is.NoErr(c.Load(nil))
	is.Equal(c.NumCols, 7)
	is.Equal(c.NumRows, 6)
	is.Equal(c.Depth, 2)
	is.Equal(c.TerminalPly(), 40)
	is.True(c.ChunkSize > 0)
	is.Equal(c.Workers, 1)
}

func TestFlagsOverride(t *testing.T) {
	is := is.New(t)
	var c Config
	is.NoErr(c.Load([]string{
		"--cols", "4", "--rows", "4", "--depth", "2",
		"--chunk-size", "1000", "--workers", "4",
		"--data-prefix", "/tmp/d-", "--table-prefix", "/tmp/t-",
	}))
	is.Equal(c.NumCols, 4)
	is.Equal(c.NumRows, 4)
	is.Equal(c.TerminalPly(), 14)
	is.Equal(c.ChunkSize, int64(1000))
	is.Equal(c.Workers, 4)
	is.Equal(c.DataPrefix, "/tmp/d-")
}

func TestEnvOverride(t *testing.T) {
	is := is.New(t)
	t.Setenv("C4TABLE_COLS", "5")
	t.Setenv("C4TABLE_CHUNK_SIZE", "2000")
	var c Config
	is.NoErr(c.Load(nil))
	is.Equal(c.NumCols, 5)
	is.Equal(c.ChunkSize, int64(2000))
}

func TestValidateRejectsBadGeometry(t *testing.T) {
	is := is.New(t)
	bad := [][]string{
		{"--cols", "9"},
		{"--cols", "0"},
		{"--rows", "8"},
		{"--depth", "0"},
		{"--cols", "2", "--rows", "1", "--depth", "2"},
		{"--workers", "0"},
	}
	for _, args := range bad {
		var c Config
		is.True(c.Load(args) != nil)
	}
}
