package zobrist

import (
	"lukechampine.com/frand"

	"github.com/juniper-u/juniper/game"
)

const bignum = 1<<63 - 2

// Zobrist hashes a position by its set of played numbers and its last move.
// Those two determine every legal continuation, so two move orders that
// reach the same pair hash the same.
// https://en.wikipedia.org/wiki/Zobrist_hashing
type Zobrist struct {
	playedTable []uint64
	// lastTable[0] stands for "no move yet".
	lastTable []uint64
	gridSize  int
}

func (z *Zobrist) Initialize(gridSize int) {
	z.gridSize = gridSize
	z.playedTable = make([]uint64, gridSize+1)
	z.lastTable = make([]uint64, gridSize+1)
	for i := 0; i <= gridSize; i++ {
		z.playedTable[i] = frand.Uint64n(bignum) + 1
		z.lastTable[i] = frand.Uint64n(bignum) + 1
	}
}

func (z *Zobrist) GridSize() int {
	return z.gridSize
}

func (z *Zobrist) Hash(s *game.State) uint64 {
	key := z.lastTable[s.LastMove()]
	for x := 1; x <= z.gridSize; x++ {
		if s.Played(x) {
			key ^= z.playedTable[x]
		}
	}
	return key
}

// AddMove updates key for move played after prevLast (0 on the empty
// position). Calling it again with the same arguments undoes it.
func (z *Zobrist) AddMove(key uint64, prevLast, move int) uint64 {
	key ^= z.playedTable[move]
	key ^= z.lastTable[prevLast]
	key ^= z.lastTable[move]
	return key
}
