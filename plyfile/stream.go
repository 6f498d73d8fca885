package plyfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/cespare/xxhash"

	"github.com/dzsolve/c4table/position"
)

// PositionReader streams compressed positions out of a data or chunk
// file. The file size is validated on open.
type PositionReader struct {
	f   *os.File
	r   *bufio.Reader
	n   int64
	buf [PositionSize]byte
}

// OpenPositions opens a ply data or chunk file for streaming.
func OpenPositions(path string) (*PositionReader, error) {
	n, err := SizeOf(path, PositionSize)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &PositionReader{f: f, r: bufio.NewReaderSize(f, 1<<20), n: n}, nil
}

// NumPositions returns the total record count of the file.
func (r *PositionReader) NumPositions() int64 { return r.n }

// Next returns the next position, or io.EOF after the last one.
func (r *PositionReader) Next() (position.Compressed, error) {
	if _, err := io.ReadFull(r.r, r.buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, fmt.Errorf("%w: %s", ErrMalformed, r.f.Name())
		}
		return 0, err
	}
	return position.Compressed(binary.LittleEndian.Uint64(r.buf[:])), nil
}

func (r *PositionReader) Close() error { return r.f.Close() }

// PositionWriter writes compressed positions to a new file, keeping a
// record count and a running xxhash64 of the bytes written.
type PositionWriter struct {
	f     *os.File
	w     *bufio.Writer
	h     hash.Hash64
	count int64
	buf   [PositionSize]byte
}

// CreatePositions creates a data or chunk file. The file must not
// already exist.
func CreatePositions(path string) (*PositionWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrExists, path)
		}
		return nil, err
	}
	return &PositionWriter{f: f, w: bufio.NewWriterSize(f, 1<<20), h: xxhash.New()}, nil
}

// Write appends one position.
func (w *PositionWriter) Write(c position.Compressed) error {
	binary.LittleEndian.PutUint64(w.buf[:], uint64(c))
	if _, err := w.w.Write(w.buf[:]); err != nil {
		return err
	}
	w.h.Write(w.buf[:])
	w.count++
	return nil
}

// Count returns the number of positions written so far.
func (w *PositionWriter) Count() int64 { return w.count }

// Sum64 returns the xxhash64 of all bytes written so far.
func (w *PositionWriter) Sum64() uint64 { return w.h.Sum64() }

// Close flushes and closes the file.
func (w *PositionWriter) Close() error {
	err := w.w.Flush()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// TableReader streams (position, score) entries out of a table file.
type TableReader struct {
	f   *os.File
	r   *bufio.Reader
	n   int64
	buf [EntrySize]byte
}

// OpenTable opens a table file for streaming.
func OpenTable(path string) (*TableReader, error) {
	n, err := SizeOf(path, EntrySize)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &TableReader{f: f, r: bufio.NewReaderSize(f, 1<<20), n: n}, nil
}

// NumEntries returns the total entry count of the file.
func (r *TableReader) NumEntries() int64 { return r.n }

// Next returns the next entry, or io.EOF after the last one.
func (r *TableReader) Next() (position.Compressed, int8, error) {
	if _, err := io.ReadFull(r.r, r.buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, 0, fmt.Errorf("%w: %s", ErrMalformed, r.f.Name())
		}
		return 0, 0, err
	}
	c := position.Compressed(binary.LittleEndian.Uint64(r.buf[:PositionSize]))
	return c, int8(r.buf[PositionSize]), nil
}

func (r *TableReader) Close() error { return r.f.Close() }

// TableWriter writes (position, score) entries to a new table file.
type TableWriter struct {
	f     *os.File
	w     *bufio.Writer
	h     hash.Hash64
	count int64
	buf   [EntrySize]byte
}

// CreateTable creates a table file. The file must not already exist.
func CreateTable(path string) (*TableWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrExists, path)
		}
		return nil, err
	}
	return &TableWriter{f: f, w: bufio.NewWriterSize(f, 1<<20), h: xxhash.New()}, nil
}

// WriteEntry appends one entry.
func (w *TableWriter) WriteEntry(c position.Compressed, score int8) error {
	binary.LittleEndian.PutUint64(w.buf[:PositionSize], uint64(c))
	w.buf[PositionSize] = byte(score)
	if _, err := w.w.Write(w.buf[:]); err != nil {
		return err
	}
	w.h.Write(w.buf[:])
	w.count++
	return nil
}

// Count returns the number of entries written so far.
func (w *TableWriter) Count() int64 { return w.count }

// Sum64 returns the xxhash64 of all bytes written so far.
func (w *TableWriter) Sum64() uint64 { return w.h.Sum64() }

// Close flushes and closes the file.
func (w *TableWriter) Close() error {
	err := w.w.Flush()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}
