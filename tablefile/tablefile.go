// Package tablefile reads the per-ply score tables through a read-only
// memory mapping and implements the child-combining evaluation used by
// the back-propagation phase.
package tablefile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/dzsolve/c4table/plyfile"
	"github.com/dzsolve/c4table/position"
)

// ErrInconclusiveSearch means a position absent from the table could not
// be resolved by the deeper fallback search. Positions are only omitted
// from a table when the shallow evaluator was decisive, so hitting this
// is a configuration bug, not a runtime condition.
var ErrInconclusiveSearch = errors.New("inconclusive search on table miss")

// Table is a memory-mapped, read-only view of one ply's table file:
// 9-byte records of (u64 LE compressed position, i8 score) in strictly
// ascending position order.
type Table struct {
	f    *os.File
	data []byte
	n    int64
}

// Open maps the table file at path. A zero-length table (a fully pruned
// terminal ply) is valid: it maps nothing and every lookup resolves by
// search.
func Open(path string) (*Table, error) {
	n, err := plyfile.SizeOf(path, plyfile.EntrySize)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	t := &Table{f: f, n: n}
	if n > 0 {
		data, err := unix.Mmap(int(f.Fd()), 0, int(n*plyfile.EntrySize),
			unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("mmap %s: %w", path, err)
		}
		t.data = data
	}
	return t, nil
}

// NumEntries returns the number of records in the table.
func (t *Table) NumEntries() int64 { return t.n }

// Close releases the mapping and the descriptor. Teardown failures are
// logged as warnings only; by the time Close runs the computed result is
// already on disk.
func (t *Table) Close() {
	if t.data != nil {
		if err := unix.Munmap(t.data); err != nil {
			log.Warn().Err(err).Str("file", t.f.Name()).Msg("munmap-failed")
		}
		t.data = nil
	}
	if err := t.f.Close(); err != nil {
		log.Warn().Err(err).Msg("table-close-failed")
	}
}

// PositionAt returns the compressed position of record i.
func (t *Table) PositionAt(i int64) position.Compressed {
	off := i * plyfile.EntrySize
	return position.Compressed(binary.LittleEndian.Uint64(t.data[off : off+plyfile.PositionSize]))
}

// ScoreAt returns the score of record i.
func (t *Table) ScoreAt(i int64) int8 {
	return int8(t.data[i*plyfile.EntrySize+plyfile.PositionSize])
}

// LookupScore finds the score of pos for player p by binary search. A
// miss means the position was pruned during expansion because its
// shallow evaluation was decisive, so it is re-derived with a search one
// ply deeper than the pruning horizon; if even that is inconclusive the
// run cannot continue.
func (t *Table) LookupScore(pos position.Position, p position.Player, rows, cols, depth int) (int, error) {
	target := position.Compress(pos)
	lo, hi := int64(0), t.n-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		center := t.PositionAt(mid)
		switch {
		case center < target:
			lo = mid + 1
		case center > target:
			hi = mid - 1
		default:
			return int(t.ScoreAt(mid)), nil
		}
	}
	score := pos.Score(p, rows, cols, depth+1)
	if score == position.UnknownScore {
		return 0, fmt.Errorf("%w: %s to move\n%s", ErrInconclusiveSearch, p, pos)
	}
	return score, nil
}

// EvaluateChildren computes the score of a parent position for player p
// by combining the scores of all its children, looked up in this table
// (which holds the following ply, with the opponent to move). The
// combine rule matches position.Score: any child at -1 is an immediate
// win, otherwise the least negative child wins fastest, a drawn child
// absorbs non-winning alternatives, and all-positive children mean the
// opponent's slowest win becomes our loss.
func (t *Table) EvaluateChildren(parent position.Compressed, p position.Player, rows, cols, depth int) (int, error) {
	pos := parent.Decompress()
	if pos.Won(p.Other()) != 0 {
		return -1, nil
	}
	bestNegative := position.UnknownScore
	bestPositive := 0
	hasDraw := false
	for col := 0; col < cols; col++ {
		next := pos.Move(p, col, rows)
		if next.IsEmpty() {
			continue
		}
		s, err := t.LookupScore(next, p.Other(), rows, cols, depth)
		if err != nil {
			return 0, err
		}
		switch {
		case s == -1:
			return 1, nil
		case s < 0:
			if s > bestNegative {
				bestNegative = s
			}
		case s > 0:
			if s > bestPositive {
				bestPositive = s
			}
		default:
			hasDraw = true
		}
	}
	switch {
	case bestNegative > position.UnknownScore:
		return 1 - bestNegative, nil
	case hasDraw:
		return 0, nil
	case bestPositive > 0:
		return -bestPositive - 1, nil
	default:
		return 0, nil
	}
}
