package game

import "math/bits"

// Bitset is a set of numbers in [0, 64*len).
type Bitset []uint64

func NewBitset(n int) Bitset {
	return make(Bitset, n/64+1)
}

func (b Bitset) Has(x int) bool {
	w := x >> 6
	return w < len(b) && b[w]&(1<<(uint(x)&63)) != 0
}

func (b Bitset) Set(x int) {
	b[x>>6] |= 1 << (uint(x) & 63)
}

func (b Bitset) Clear(x int) {
	b[x>>6] &^= 1 << (uint(x) & 63)
}

func (b Bitset) Clone() Bitset {
	c := make(Bitset, len(b))
	copy(c, b)
	return c
}

func (b Bitset) Count() int {
	c := 0
	for _, w := range b {
		c += bits.OnesCount64(w)
	}
	return c
}
