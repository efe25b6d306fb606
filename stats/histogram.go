package stats

import (
	"io"

	"github.com/aybabtme/uniplot/histogram"
)

const histogramWidth = 40

// FprintHistogram draws a text histogram of data with the given number of
// bins.
func FprintHistogram(w io.Writer, data []float64, bins int) error {
	if len(data) == 0 {
		_, err := io.WriteString(w, "(no data)\n")
		return err
	}
	hist := histogram.Hist(bins, data)
	return histogram.Fprint(w, hist, histogram.Linear(histogramWidth))
}
