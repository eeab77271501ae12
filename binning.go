/*
 *  binning.go
 *  rnaseqqc
 *
 *  Created by Haibao Tang on 10/16/26
 *  Copyright © 2026 Haibao Tang. All rights reserved.
 */

package rnaseqqc

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Bin is one equal-frequency partition of the rows, right-closed except for the
// first bin, which also holds the lowest value
type Bin struct {
	Lower float64
	Upper float64
	Rows  []int // row indices, in the order of the sorted factor values
}

// quantile interpolates linearly between the closest ranks, h = (n-1)p
func quantile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// quantileEdges computes the k/n quantiles for k = 0..n. Colliding edges are
// merged so that the result is strictly increasing.
func quantileEdges(sorted []float64, n int) []float64 {
	edges := make([]float64, 0, n+1)
	for k := 0; k <= n; k++ {
		q := quantile(sorted, float64(k)/float64(n))
		if len(edges) > 0 && q <= edges[len(edges)-1] {
			continue
		}
		edges = append(edges, q)
	}
	return edges
}

// QuantileBins partitions rows into at most n equal-frequency bins by value.
// Rows are ordered by a stable sort, so ties keep their table order. Edges
// that collide because of repeated values are merged, which can yield fewer
// than n bins; a bin between two distinct edges may still be empty.
func QuantileBins(values []float64, n int) []Bin {
	if len(values) == 0 || n < 1 {
		return nil
	}
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return values[order[i]] < values[order[j]]
	})
	sorted := make([]float64, len(values))
	for i, idx := range order {
		sorted[i] = values[idx]
	}

	edges := quantileEdges(sorted, n)
	if len(edges) < 2 {
		// Every value is the same, a single closed bin holds them all
		return []Bin{{Lower: edges[0], Upper: edges[0], Rows: order}}
	}
	bins := make([]Bin, len(edges)-1)
	for i := range bins {
		bins[i].Lower, bins[i].Upper = edges[i], edges[i+1]
	}
	for _, idx := range order {
		bi := sort.SearchFloat64s(edges, values[idx]) - 1
		if bi < 0 {
			bi = 0
		}
		if bi >= len(bins) {
			bi = len(bins) - 1
		}
		bins[bi].Rows = append(bins[bi].Rows, idx)
	}
	return bins
}

// aggregateBins reduces a column within each bin, empty bins give NaN
func aggregateBins(column []float64, bins []Bin, agg AggregateFunc) []float64 {
	ans := make([]float64, len(bins))
	buf := []float64{}
	for i, bin := range bins {
		if len(bin.Rows) == 0 {
			ans[i] = math.NaN()
			continue
		}
		buf = buf[:0]
		for _, idx := range bin.Rows {
			buf = append(buf, column[idx])
		}
		ans[i] = agg(buf)
	}
	return ans
}

// minMaxNormalize rescales the finite entries to [0, 1]. It returns false when
// the column has no spread.
func minMaxNormalize(a []float64) ([]float64, bool) {
	valid := finite(a)
	if len(valid) == 0 {
		return nil, false
	}
	lo, hi := floats.Min(valid), floats.Max(valid)
	if hi == lo {
		return nil, false
	}
	ans := make([]float64, len(a))
	for i, x := range a {
		if math.IsNaN(x) {
			ans[i] = x
			continue
		}
		ans[i] = (x - lo) / (hi - lo)
	}
	return ans, true
}

// ranks assigns 1-based ranks, tied values share their average rank
func ranks(a []float64) []float64 {
	order := make([]int, len(a))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return a[order[i]] < a[order[j]] })
	ans := make([]float64, len(a))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && a[order[j+1]] == a[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ans[order[k]] = avg
		}
		i = j + 1
	}
	return ans
}

// spearman is the Pearson correlation of the ranks
func spearman(x, y []float64) float64 {
	return stat.Correlation(ranks(x), ranks(y), nil)
}

// gradient is the least-squares slope of y against x
func gradient(x, y []float64) float64 {
	_, beta := stat.LinearRegression(x, y, nil, false)
	return beta
}

// pairwiseFinite keeps the positions where both x and y are defined
func pairwiseFinite(x, y []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}
