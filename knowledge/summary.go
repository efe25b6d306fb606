package knowledge

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/juniper-u/juniper/game"
	"github.com/juniper-u/juniper/stats"
)

// Summary describes the contents of a store.
type Summary struct {
	GridSize  int
	Total     int
	Terminal  int
	Saturated int
	Coverage  float64

	ConfidenceMean  float64
	ConfidenceStdev float64
	// ConfidenceCI95 is the half-width of the 95% interval on the mean.
	ConfidenceCI95 float64

	ByDepth map[int]int
	// Confidences of the non-terminal entries, for plotting.
	Confidences []float64
}

func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := Summary{
		GridSize: s.gridSize,
		Total:    len(s.entries),
		Coverage: s.coverageLocked(),
		ByDepth:  make(map[int]int),
	}
	conf := &stats.Statistic{}
	for k, e := range s.entries {
		sum.ByDepth[game.KeyDepth(k)]++
		conf.Push(e.Confidence)
		if e.IsTerminal {
			sum.Terminal++
		} else {
			sum.Confidences = append(sum.Confidences, e.Confidence)
		}
		if e.Saturated() {
			sum.Saturated++
		}
	}
	sum.ConfidenceMean = conf.Mean()
	sum.ConfidenceStdev = conf.Stdev()
	sum.ConfidenceCI95 = stats.HalfWidth(conf, 95)
	return sum
}

func (sum Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "grid %d: %d sequences, %d proven, %d saturated (coverage %.1f%%)\n",
		sum.GridSize, sum.Total, sum.Terminal, sum.Saturated, 100*sum.Coverage)
	fmt.Fprintf(&sb, "confidence: mean %.3f ± %.3f (stdev %.3f)\n",
		sum.ConfidenceMean, sum.ConfidenceCI95, sum.ConfidenceStdev)
	for _, d := range slices.Sorted(maps.Keys(sum.ByDepth)) {
		fmt.Fprintf(&sb, "  depth %2d: %d\n", d, sum.ByDepth[d])
	}
	return sb.String()
}

// WriteConfidenceHistogram plots the confidences of non-terminal entries.
func (sum Summary) WriteConfidenceHistogram(w io.Writer) error {
	return stats.FprintHistogram(w, sum.Confidences, 10)
}
