package game

import (
	"fmt"
	"strconv"

	"github.com/juniper-u/juniper/cache"
)

// Adjacency is the static divisor/multiple table of a grid. It never changes
// once built and is shared by every state on that grid.
type Adjacency struct {
	n         int
	divisors  [][]int
	multiples [][]int
	// neighbors is divisors followed by multiples, which is ascending.
	neighbors [][]int
}

func buildAdjacency(n int) *Adjacency {
	a := &Adjacency{
		n:         n,
		divisors:  make([][]int, n+1),
		multiples: make([][]int, n+1),
		neighbors: make([][]int, n+1),
	}
	for x := 1; x <= n; x++ {
		for m := 2 * x; m <= n; m += x {
			a.multiples[x] = append(a.multiples[x], m)
			a.divisors[m] = append(a.divisors[m], x)
		}
	}
	for x := 1; x <= n; x++ {
		nb := make([]int, 0, len(a.divisors[x])+len(a.multiples[x]))
		nb = append(nb, a.divisors[x]...)
		nb = append(nb, a.multiples[x]...)
		a.neighbors[x] = nb
	}
	return a
}

// AdjacencyFor returns the process-wide table for grid size n.
func AdjacencyFor(n int) (*Adjacency, error) {
	if n < 1 || n > MaxGridSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGridSize, n)
	}
	obj, err := cache.Load("adjacency:"+strconv.Itoa(n), func(string) (any, error) {
		return buildAdjacency(n), nil
	})
	if err != nil {
		return nil, err
	}
	return obj.(*Adjacency), nil
}

func (a *Adjacency) GridSize() int { return a.n }

// Divisors of x in [1,N], excluding x. Callers must not modify the slice.
func (a *Adjacency) Divisors(x int) []int { return a.divisors[x] }

// Multiples of x in [1,N], excluding x. Callers must not modify the slice.
func (a *Adjacency) Multiples(x int) []int { return a.multiples[x] }

// Neighbors are the divisors and multiples of x, ascending.
func (a *Adjacency) Neighbors(x int) []int { return a.neighbors[x] }

// Connections is the static number of neighbors of x.
func (a *Adjacency) Connections(x int) int { return len(a.neighbors[x]) }

// Available lists the unplayed neighbors of last, ascending.
func (a *Adjacency) Available(last int, played Bitset) []int {
	out := make([]int, 0, len(a.neighbors[last]))
	for _, y := range a.neighbors[last] {
		if !played.Has(y) {
			out = append(out, y)
		}
	}
	return out
}

// CountAvailable counts the unplayed neighbors of last.
func (a *Adjacency) CountAvailable(last int, played Bitset) int {
	c := 0
	for _, y := range a.neighbors[last] {
		if !played.Has(y) {
			c++
		}
	}
	return c
}

// DynamicConnections counts the neighbors of x still open once x itself is
// played, given the numbers already played.
func (a *Adjacency) DynamicConnections(x int, played Bitset) int {
	c := 0
	for _, y := range a.neighbors[x] {
		if y != x && !played.Has(y) {
			c++
		}
	}
	return c
}

// IsPrime reports whether x is prime. Within a grid, a number is prime iff
// its only divisor below itself is 1.
func (a *Adjacency) IsPrime(x int) bool {
	return x >= 2 && len(a.divisors[x]) == 1
}
