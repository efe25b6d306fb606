package solver

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"
)

const (
	ttMoverWins  = 0x01
	ttMoverLoses = 0x02
)

const entrySize = 16

const (
	minTablePowerOf2 = 16
	maxTablePowerOf2 = 22
)

// 16 bytes (entrySize). Only exact game values are stored, so an entry is
// valid for every depth cap.
type TableEntry struct {
	fullHash uint64
	flag     uint8
}

func (t TableEntry) valid() bool {
	return t.flag != 0
}

func (t TableEntry) moverWins() bool {
	return t.flag == ttMoverWins
}

type TableLock interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

type FakeLock struct{}

func (f FakeLock) Lock()    {}
func (f FakeLock) Unlock()  {}
func (f FakeLock) RLock()   {}
func (f FakeLock) RUnlock() {}

type TranspositionTable struct {
	TableLock
	table        []TableEntry
	created      atomic.Uint64
	lookups      atomic.Uint64
	hits         atomic.Uint64
	sizePowerOf2 int
	sizeMask     uint64
	// Two positions mapping to the same slot. The newer one overwrites.
	t2collisions atomic.Uint64
}

func NewTranspositionTable() *TranspositionTable {
	return &TranspositionTable{TableLock: new(sync.RWMutex)}
}

// SetSingleThreadedMode drops locking. Only for a table that a single
// search uses at a time.
func (t *TranspositionTable) SetSingleThreadedMode() {
	t.TableLock = &FakeLock{}
}

// lookup returns the stored value for zval, if any.
func (t *TranspositionTable) lookup(zval uint64) (moverWins, ok bool) {
	t.RLock()
	defer t.RUnlock()
	t.lookups.Add(1)
	e := t.table[zval&t.sizeMask]
	if e.fullHash != zval {
		if e.valid() {
			t.t2collisions.Add(1)
		}
		return false, false
	}
	t.hits.Add(1)
	return e.moverWins(), true
}

func (t *TranspositionTable) store(zval uint64, moverWins bool) {
	flag := uint8(ttMoverLoses)
	if moverWins {
		flag = ttMoverWins
	}
	t.Lock()
	defer t.Unlock()
	t.table[zval&t.sizeMask] = TableEntry{fullHash: zval, flag: flag}
	t.created.Add(1)
}

// Reset reallocates the table to use roughly fractionOfMemory of system
// memory, rounded down to a power of two and clamped.
func (t *TranspositionTable) Reset(fractionOfMemory float64) {
	t.Lock()
	defer t.Unlock()
	totalMem := memory.TotalMemory()
	desiredNElems := fractionOfMemory * (float64(totalMem) / float64(entrySize))
	t.sizePowerOf2 = int(math.Log2(math.Max(desiredNElems, 1)))
	t.sizePowerOf2 = min(max(t.sizePowerOf2, minTablePowerOf2), maxTablePowerOf2)
	numElems := 1 << t.sizePowerOf2
	t.sizeMask = uint64(numElems - 1)
	t.table = make([]TableEntry, numElems)
	t.created.Store(0)
	t.lookups.Store(0)
	t.hits.Store(0)
	t.t2collisions.Store(0)
	log.Debug().Int("num-elems", numElems).
		Float64("desired-num-elems", desiredNElems).
		Int("estimated-total-memory-bytes", numElems*entrySize).
		Uint64("system-memory", totalMem).
		Msg("transposition-table-size")
}

func (t *TranspositionTable) Stats() (created, lookups, hits, collisions uint64) {
	return t.created.Load(), t.lookups.Load(), t.hits.Load(), t.t2collisions.Load()
}
