package position

import (
	"math/bits"

	"github.com/dzsolve/c4table/bitboard"
)

// Compressed is the canonical 64-bit encoding of a Position. It is
// Black's occupancy with one extra "height marker" bit per column byte
// at the column's fill height. The marker is always the highest set bit
// of its byte, so decoding recovers the column height, and every bit
// strictly below the marker is a piece: set for Black, clear for White.
//
// The encoding is a bijection on legal positions, and the unsigned
// integer order on Compressed is the total order used by the sorted
// ply and table files.
type Compressed uint64

// EmptyBoard is the compressed empty position: a marker at row 0 of
// every column and no pieces.
const EmptyBoard Compressed = 0x0101010101010101

// Compress encodes a position.
func Compress(pos Position) Compressed {
	full := pos.FullBoard()
	c := uint64(pos.Black)
	for col := 0; col < 8; col++ {
		c |= 1 << (8*col + full.Height(col))
	}
	return Compressed(c)
}

// markerRow returns the row of the height marker in col: the position
// of the highest set bit of the column byte. Every column byte has at
// least the marker set, so the expression is total.
func (c Compressed) markerRow(col int) int {
	x := uint64(c) & (uint64(bitboard.ColumnA) << (8 * col))
	return 7 - bits.LeadingZeros64(x)%8
}

// pieceMask returns the mask of occupied cells: per column, all bits
// strictly below the height marker.
func (c Compressed) pieceMask() uint64 {
	var mask uint64
	for col := 0; col < 8; col++ {
		mask |= (uint64(1)<<c.markerRow(col) - 1) << (8 * col)
	}
	return mask
}

// Decompress decodes back into a Position.
func (c Compressed) Decompress() Position {
	mask := c.pieceMask()
	return Position{
		White: bitboard.BitBoard(mask &^ uint64(c)),
		Black: bitboard.BitBoard(mask & uint64(c)),
	}
}

func (c Compressed) String() string {
	return c.Decompress().String()
}
