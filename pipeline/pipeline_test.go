package pipeline

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
	"github.com/stretchr/testify/require"

	"github.com/dzsolve/c4table/config"
	"github.com/dzsolve/c4table/manifest"
	"github.com/dzsolve/c4table/plyfile"
	"github.com/dzsolve/c4table/position"
)

func testConfig(dir string, cols, rows, depth int, chunkSize int64, workers int) *config.Config {
	return &config.Config{
		NumCols:     cols,
		NumRows:     rows,
		Depth:       depth,
		ChunkSize:   chunkSize,
		Workers:     workers,
		DataPrefix:  filepath.Join(dir, "C4DATA-"),
		TablePrefix: filepath.Join(dir, "C4TABLE-"),
	}
}

// fullScore solves a position completely by memoized search, using the
// same distance recurrence as the pipeline. The side to move is implied
// by the piece count, so the compressed form alone is a sound memo key.
func fullScore(pos position.Position, p position.Player, rows, cols int, memo map[position.Compressed]int) int {
	if pos.Won(p.Other()) != 0 {
		return -1
	}
	key := position.Compress(pos)
	if s, ok := memo[key]; ok {
		return s
	}
	bestNegative := position.UnknownScore
	bestPositive := 0
	hasDraw := false
	winInOne := false
	for col := 0; col < cols && !winInOne; col++ {
		next := pos.Move(p, col, rows)
		if next.IsEmpty() {
			continue
		}
		s := fullScore(next, p.Other(), rows, cols, memo)
		switch {
		case s == -1:
			winInOne = true
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
	var res int
	switch {
	case winInOne:
		res = 1
	case bestNegative > position.UnknownScore:
		res = 1 - bestNegative
	case hasDraw:
		res = 0
	case bestPositive > 0:
		res = -bestPositive - 1
	default:
		res = 0
	}
	memo[key] = res
	return res
}

func TestZeroStep(t *testing.T) {
	is := is.New(t)
	s := New(testConfig(t.TempDir(), 7, 6, 2, 100, 1))
	is.NoErr(s.zeroStep())
	r, err := plyfile.OpenPositions(s.paths.Data(0))
	is.NoErr(err)
	defer r.Close()
	is.Equal(r.NumPositions(), int64(1))
	c, err := r.Next()
	is.NoErr(err)
	is.Equal(c, position.EmptyBoard)
	// A second zero-step must refuse to overwrite.
	is.True(errors.Is(s.zeroStep(), plyfile.ErrExists))
}

func TestExpandKeepsOnlyUnknownChildren(t *testing.T) {
	is := is.New(t)
	s := New(testConfig(t.TempDir(), 7, 6, 2, 100, 1))
	is.NoErr(s.zeroStep())
	is.NoErr(s.expandStep(0))
	// Every opening move is unresolvable at depth 2: one chunk of 7.
	r, err := plyfile.OpenPositions(s.paths.Chunk(1, 0))
	is.NoErr(err)
	defer r.Close()
	is.Equal(r.NumPositions(), int64(7))
	prev := position.Compressed(0)
	for i := 0; i < 7; i++ {
		c, err := r.Next()
		is.NoErr(err)
		is.True(c > prev)
		prev = c
	}
}

func TestExpandPrunesDecisiveChildren(t *testing.T) {
	is := is.New(t)
	s := New(testConfig(t.TempDir(), 7, 6, 2, 100, 1))
	// White to move at ply 6 with an open-ended three: every reply
	// line is decided within the pruning horizon, so no child
	// survives and no chunk file is written.
	var pos position.Position
	pos = pos.Move(position.White, 1, 6)
	pos = pos.Move(position.Black, 1, 6)
	pos = pos.Move(position.White, 2, 6)
	pos = pos.Move(position.Black, 2, 6)
	pos = pos.Move(position.White, 3, 6)
	pos = pos.Move(position.Black, 3, 6)
	w, err := plyfile.CreatePositions(s.paths.Data(6))
	is.NoErr(err)
	is.NoErr(w.Write(position.Compress(pos)))
	is.NoErr(w.Close())

	is.NoErr(s.expandStep(6))
	_, err = plyfile.OpenPositions(s.paths.Chunk(7, 0))
	is.True(errors.Is(err, plyfile.ErrMissing))
	// With nothing to merge the next phase fails loudly.
	is.True(s.mergeStep(7) != nil)
}

func TestMergeTwoChunks(t *testing.T) {
	is := is.New(t)
	s := New(testConfig(t.TempDir(), 7, 6, 2, 100, 1))
	writeChunk := func(chunk int, positions []position.Compressed) {
		w, err := plyfile.CreatePositions(s.paths.Chunk(3, chunk))
		is.NoErr(err)
		for _, c := range positions {
			is.NoErr(w.Write(c))
		}
		is.NoErr(w.Close())
	}
	writeChunk(0, []position.Compressed{2, 5, 9})
	writeChunk(1, []position.Compressed{2, 3, 9, 11})

	is.NoErr(s.mergeStep(3))
	r, err := plyfile.OpenPositions(s.paths.Data(3))
	is.NoErr(err)
	defer r.Close()
	var got []position.Compressed
	for {
		c, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		is.NoErr(err)
		got = append(got, c)
	}
	is.Equal(got, []position.Compressed{2, 3, 5, 9, 11})
	// Chunk files are deleted after a successful merge.
	_, err = os.Stat(s.paths.Chunk(3, 0))
	is.True(errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(s.paths.Chunk(3, 1))
	is.True(errors.Is(err, os.ErrNotExist))
}

func TestFullRunTinyBoard(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	cfg := testConfig(dir, 4, 4, 2, 50, 1)
	s := New(cfg)

	manPath := filepath.Join(dir, "run.db")
	man, err := manifest.Open(manPath)
	require.NoError(err)
	defer man.Close()
	s.SetManifest(man)

	require.NoError(s.Run())

	// All data and chunk files are consumed; only tables remain.
	leftovers, err := filepath.Glob(filepath.Join(dir, "C4DATA-*"))
	require.NoError(err)
	require.Empty(leftovers)

	memo := map[position.Compressed]int{}
	terminal := cfg.TerminalPly()
	for ply := 0; ply <= terminal; ply++ {
		r, err := plyfile.OpenTable(s.paths.Table(ply))
		require.NoError(err, "table for ply %d", ply)
		require.True(r.NumEntries() > 0, "empty table at ply %d", ply)
		mover := position.SideToMove(ply)
		var prev position.Compressed
		for {
			c, sc, err := r.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(err)
			require.True(c > prev, "table %d not strictly ascending", ply)
			prev = c
			want := fullScore(c.Decompress(), mover, 4, 4, memo)
			require.Equal(want, int(sc), "wrong score at ply %d for\n%s", ply, c.Decompress())
		}
		require.NoError(r.Close())
	}

	// Ply 0 holds exactly the empty position with the exact value of
	// the game under this configuration.
	r, err := plyfile.OpenTable(s.paths.Table(0))
	require.NoError(err)
	defer r.Close()
	require.Equal(int64(1), r.NumEntries())
	c, sc, err := r.Next()
	require.NoError(err)
	require.Equal(position.EmptyBoard, c)
	require.Equal(fullScore(position.Position{}, position.White, 4, 4, memo), int(sc))

	// The manifest recorded every phase.
	rows, err := man.Phases()
	require.NoError(err)
	require.Equal(2+3*terminal, len(rows)) // zero + end + (expand, merge, back) per ply
	require.Equal("zero-step", rows[0].Phase)
	last := rows[len(rows)-1]
	require.Equal("back-step", last.Phase)
	require.Equal(0, last.Ply)
	require.Equal(int64(1), last.Positions)
}

func TestRunIsDeterministic(t *testing.T) {
	require := require.New(t)
	dirA, dirB := t.TempDir(), t.TempDir()
	// Different chunk sizes and worker counts must not change a single
	// output byte.
	sA := New(testConfig(dirA, 4, 3, 2, 100, 1))
	sB := New(testConfig(dirB, 4, 3, 2, 7, 3))
	require.NoError(sA.Run())
	require.NoError(sB.Run())
	for ply := 0; ply <= sA.cfg.TerminalPly(); ply++ {
		a, err := os.ReadFile(sA.paths.Table(ply))
		require.NoError(err)
		b, err := os.ReadFile(sB.paths.Table(ply))
		require.NoError(err)
		require.Equal(a, b, "table files differ at ply %d", ply)
	}
}

func TestRerunRefusesToOverwrite(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	s := New(testConfig(dir, 4, 3, 2, 100, 1))
	is.NoErr(s.Run())
	// The table files survive the run, so a rerun in the same
	// directory must abort instead of overwriting them.
	is.True(errors.Is(New(testConfig(dir, 4, 3, 2, 100, 1)).Run(), plyfile.ErrExists))
}
