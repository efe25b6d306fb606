package solver

import "sync"

// WorkDeque holds indices of root candidates for one worker. The owner pops
// from the bottom; idle workers steal from the top.
type WorkDeque struct {
	mu      sync.Mutex
	indices []int
	top     int
}

func NewWorkDeque(indices []int) *WorkDeque {
	return &WorkDeque{indices: indices}
}

// Pop takes the most recently queued index.
func (d *WorkDeque) Pop() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.indices) <= d.top {
		return -1, false
	}
	idx := d.indices[len(d.indices)-1]
	d.indices = d.indices[:len(d.indices)-1]
	return idx, true
}

// Steal takes the oldest queued index.
func (d *WorkDeque) Steal() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.indices) <= d.top {
		return -1, false
	}
	idx := d.indices[d.top]
	d.top++
	return idx, true
}

func (d *WorkDeque) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.indices) - d.top
}
