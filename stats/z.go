package stats

import "gonum.org/v1/gonum/stat/distuv"

// ZVal returns the two-tailed Z-value for a confidence level given in
// percent.
func ZVal(confidenceInterval float64) float64 {
	dist := distuv.Normal{Mu: 0, Sigma: 1}
	return dist.Quantile((1 + confidenceInterval/100) / 2)
}

// HalfWidth is the half-width of the normal confidence interval around the
// mean of s at the given level in percent.
func HalfWidth(s *Statistic, confidenceInterval float64) float64 {
	return ZVal(confidenceInterval) * s.StandardError()
}
