package solver

import (
	"testing"

	"github.com/matryer/is"
)

func TestTableStoreLookup(t *testing.T) {
	is := is.New(t)
	tt := NewTranspositionTable()
	tt.Reset(1e-6)
	is.Equal(len(tt.table), 1<<minTablePowerOf2)

	_, ok := tt.lookup(0xdeadbeef)
	is.True(!ok)

	tt.store(0xdeadbeef, true)
	win, ok := tt.lookup(0xdeadbeef)
	is.True(ok)
	is.True(win)

	// Same slot, different hash: a miss, counted as a collision.
	other := uint64(0xdeadbeef) + uint64(len(tt.table))
	_, ok = tt.lookup(other)
	is.True(!ok)

	tt.store(other, false)
	win, ok = tt.lookup(other)
	is.True(ok)
	is.True(!win)
	_, ok = tt.lookup(0xdeadbeef)
	is.True(!ok)

	created, lookups, hits, collisions := tt.Stats()
	is.Equal(created, uint64(2))
	is.Equal(lookups, uint64(5))
	is.Equal(hits, uint64(2))
	is.Equal(collisions, uint64(2))
}

func TestTableResetClamps(t *testing.T) {
	is := is.New(t)
	tt := NewTranspositionTable()
	tt.SetSingleThreadedMode()
	tt.Reset(0.9)
	is.True(tt.sizePowerOf2 <= maxTablePowerOf2)
	is.True(tt.sizePowerOf2 >= minTablePowerOf2)
	is.Equal(tt.sizeMask, uint64(len(tt.table)-1))
}
