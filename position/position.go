// Package position implements the full Connect Four game state, the
// depth-bounded evaluators used to prune and to resolve positions, and
// the canonical 64-bit compressed encoding that the on-disk pipeline
// sorts and searches.
package position

import (
	"math"
	"strings"

	"github.com/dzsolve/c4table/bitboard"
)

// UnknownScore is the in-memory sentinel for "the bounded search did not
// resolve this position". It must never be written to a table file.
const UnknownScore = math.MinInt32

// Position is a complete game state: one occupancy board per player.
// Positions are values and never mutated; Move returns a new Position.
//
// Scores are signed integers from the viewpoint of the player to move:
// -1 means the opponent already has four in a row, +1 means there is a
// winning move, -2 means every move lets the opponent win next, +3 means
// a forced win in three plies, and so on. Wins are odd and positive,
// losses even and negative, draws zero.
type Position struct {
	White bitboard.BitBoard
	Black bitboard.BitBoard
}

// FullBoard returns the combined occupancy of both players.
func (pos Position) FullBoard() bitboard.BitBoard {
	return pos.White | pos.Black
}

// IsEmpty reports whether no piece is on the board. The zero Position
// doubles as the "no such move" sentinel returned by Move, which is safe
// because no legal move ever yields an empty board.
func (pos Position) IsEmpty() bool {
	return pos.White|pos.Black == 0
}

// Board returns the occupancy of a single player.
func (pos Position) Board(p Player) bitboard.BitBoard {
	if p == White {
		return pos.White
	}
	return pos.Black
}

// Won reports whether player p has four in a row; nonzero iff so.
func (pos Position) Won(p Player) uint64 {
	return pos.Board(p).Won()
}

// Move drops a piece for p into col on a board with the given number of
// rows. If the column is full the zero Position is returned.
func (pos Position) Move(p Player, col, rows int) Position {
	row := pos.FullBoard().Height(col)
	if row >= rows {
		return Position{}
	}
	bit := bitboard.BitBoard(1) << (8*col + row)
	if p == White {
		return Position{White: pos.White | bit, Black: pos.Black}
	}
	return Position{White: pos.White, Black: pos.Black | bit}
}

// Evaluate runs a negamax walk to the given depth and classifies the
// position for the player to move. Depth 0 answers only from the win
// checks; deeper calls recurse over every legal move. A child that is a
// Loss for the opponent makes this a Win immediately; otherwise Unknown
// from any child poisons the result, a Draw child (or having no move at
// all) gives Draw, and only when every child is a Win for the opponent
// is this a Loss.
func (pos Position) Evaluate(p Player, rows, cols, depth int) Result {
	if pos.Won(p) != 0 {
		return Win
	}
	if pos.Won(p.Other()) != 0 {
		return Loss
	}
	if depth == 0 {
		return Unknown
	}
	hasMove := false
	hasUnknown := false
	hasDraw := false
	for col := 0; col < cols; col++ {
		next := pos.Move(p, col, rows)
		if next.IsEmpty() {
			continue
		}
		hasMove = true
		switch next.Evaluate(p.Other(), rows, cols, depth-1) {
		case Loss:
			return Win
		case Unknown:
			hasUnknown = true
		case Draw:
			hasDraw = true
		}
	}
	switch {
	case hasUnknown:
		return Unknown
	case hasDraw || !hasMove:
		return Draw
	default:
		return Loss
	}
}

// Score runs the distance-to-resolution minimax to the given depth for
// the player to move. The recurrence adds one ply of distance and flips
// sign: moving to the least negative child score s wins in 1-s plies;
// with no negative child a draw absorbs any non-winning alternative;
// failing that the opponent's slowest win pos becomes our loss -pos-1;
// a position with no moves at all is drawn. Unknown children keep the
// result Unknown unless a decisive winning line exists.
func (pos Position) Score(p Player, rows, cols, depth int) int {
	if pos.Won(p.Other()) != 0 {
		return -1
	}
	if depth == 0 {
		return UnknownScore
	}
	bestNegative := UnknownScore
	bestPositive := 0
	hasUnknown := false
	hasDraw := false
	for col := 0; col < cols; col++ {
		next := pos.Move(p, col, rows)
		if next.IsEmpty() {
			continue
		}
		s := next.Score(p.Other(), rows, cols, depth-1)
		switch {
		case s == -1:
			return 1
		case s == UnknownScore:
			hasUnknown = true
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
	case bestNegative > UnknownScore:
		return 1 - bestNegative
	case hasUnknown:
		return UnknownScore
	case hasDraw:
		return 0
	case bestPositive > 0:
		return -bestPositive - 1
	default:
		return 0
	}
}

// String renders the position top row first, 'W'/'B' for pieces and 'O'
// for empty cells, all eight columns and rows including the sentinel
// row.
func (pos Position) String() string {
	var sb strings.Builder
	for row := 7; row >= 0; row-- {
		for col := 0; col < 8; col++ {
			bit := bitboard.BitBoard(1) << (8*col + row)
			switch {
			case pos.White&bit != 0:
				sb.WriteByte('W')
			case pos.Black&bit != 0:
				sb.WriteByte('B')
			default:
				sb.WriteByte('O')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
