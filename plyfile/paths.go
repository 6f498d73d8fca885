// Package plyfile defines the on-disk artifacts of the solver: ply data
// files (sorted u64 compressed positions), chunk files (the temporary
// sorted batches merged into a ply file) and table files (9-byte
// position+score records). All integers are little-endian; files carry
// no header or framing.
package plyfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

const (
	// PositionSize is the record size of data and chunk files.
	PositionSize = 8
	// EntrySize is the record size of table files.
	EntrySize = PositionSize + 1
)

var (
	ErrExists     = errors.New("output file already exists")
	ErrMissing    = errors.New("file does not exist")
	ErrNotRegular = errors.New("not a regular file")
	ErrMalformed  = errors.New("file size is not a multiple of the record size")
)

// Paths builds the file names for one board configuration. Data and
// table prefixes usually point at different directories (or drives);
// everything after the prefix is `CC-RR-PPPP`, zero-padded, with an
// extra `-CCCCCCCC` chunk index on chunk files.
type Paths struct {
	DataPrefix  string
	TablePrefix string
	Cols        int
	Rows        int
}

// Data returns the ply data file path for the given ply.
func (p Paths) Data(ply int) string {
	return fmt.Sprintf("%s%02d-%02d-%04d", p.DataPrefix, p.Cols, p.Rows, ply)
}

// Chunk returns the path of one expansion chunk for the given ply.
func (p Paths) Chunk(ply, chunk int) string {
	return fmt.Sprintf("%s-%08d", p.Data(ply), chunk)
}

// Table returns the table file path for the given ply.
func (p Paths) Table(ply int) string {
	return fmt.Sprintf("%s%02d-%02d-%04d", p.TablePrefix, p.Cols, p.Rows, ply)
}

// AssertAbsent fails with ErrExists if path already exists. Fresh runs
// must never overwrite earlier output.
func AssertAbsent(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// statRegular returns the size of an existing regular file.
func statRegular(path string) (int64, error) {
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", ErrMissing, path)
	}
	if err != nil {
		return 0, err
	}
	if !st.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}
	return st.Size(), nil
}

// SizeOf validates that path is a regular file whose size is a multiple
// of recordSize and returns the record count.
func SizeOf(path string, recordSize int64) (int64, error) {
	size, err := statRegular(path)
	if err != nil {
		return 0, err
	}
	if size%recordSize != 0 {
		return 0, fmt.Errorf("%w: %s (%d bytes)", ErrMalformed, path, size)
	}
	return size / recordSize, nil
}
