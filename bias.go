/*
 *  bias.go
 *  rnaseqqc
 *
 *  Created by Haibao Tang on 10/16/26
 *  Copyright © 2026 Haibao Tang. All rights reserved.
 */

package rnaseqqc

import (
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// BiasAggregator bins transcripts by each bias factor and relates the binned
// abundances of every sample to the factor.
//
// Summary of algorithm, for each factor:
// Step 1. Partition the transcripts into equal-frequency bins of the factor
// Step 2. Aggregate the factor and the log2 abundance of every sample per bin
// Step 3. Min-max normalize the binned abundances of each sample
// Step 4. Spearman correlation and least-squares slope of each sample against the factor
type BiasAggregator struct {
	cfg Config
}

// MergedTable is the inner join of attributes and log2 abundances
type MergedTable struct {
	IDs        []TranscriptID
	Factors    []string
	Attributes [][]float64 // Attributes[factor][row]
	Samples    []string    // sorted
	Expression [][]float64 // Expression[sample][row], log2(x + PseudoCount)
}

// BinRow is one line of a BinnedMeans table
type BinRow struct {
	Lower   float64
	Upper   float64
	Size    int
	Samples []float64 // normalized to [0, 1], NaN for an empty bin
	Factor  float64   // aggregated factor value in original scale
}

// BinnedMeans holds the aggregated abundances of one factor
type BinnedMeans struct {
	Factor  string
	Samples []string
	Rows    []BinRow
}

// FactorSummary is the result for one bias factor
type FactorSummary struct {
	Factor       string
	Binned       *BinnedMeans
	Correlations []float64 // Spearman rho per sample, same order as Samples
	Gradients    []float64 // slope per sample, same order as Samples
}

// BiasSummary collects the results of all factors
type BiasSummary struct {
	Samples []string
	Factors []*FactorSummary // sorted by factor name
}

// NewBiasAggregator checks the configuration and returns the aggregator
func NewBiasAggregator(cfg Config) (*BiasAggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BiasAggregator{cfg: cfg}, nil
}

// Config returns the validated configuration
func (r *BiasAggregator) Config() Config {
	return r.cfg
}

// Join keeps the transcripts present in both tables, in attribute table order,
// and log2 transforms the abundances. Samples are sorted by name.
func (r *BiasAggregator) Join(attrs *AttributeTable, expr *ExpressionTable) (*MergedTable, error) {
	exprIdx := make(map[TranscriptID]int, expr.Len())
	for i, id := range expr.ids {
		exprIdx[id] = i
	}
	var attrRows, exprRows []int
	for i, id := range attrs.ids {
		if j, ok := exprIdx[id]; ok {
			attrRows = append(attrRows, i)
			exprRows = append(exprRows, j)
		}
	}

	matched := len(attrRows)
	if matched != attrs.Len() || matched != expr.Len() {
		log.Warningf("Matched ids: %s attribute rows, %s expression rows",
			Percentage(matched, attrs.Len()), Percentage(matched, expr.Len()))
	}
	if r.cfg.MaxDropFraction > 0 {
		dropA := 1 - float64(matched)/math.Max(float64(attrs.Len()), 1)
		dropE := 1 - float64(matched)/math.Max(float64(expr.Len()), 1)
		if dropA > r.cfg.MaxDropFraction || dropE > r.cfg.MaxDropFraction {
			return nil, &IdentifierMismatchError{Matched: matched, AttributeRows: attrs.Len(),
				ExpressionRows: expr.Len(), MaxDropFraction: r.cfg.MaxDropFraction}
		}
	}

	m := &MergedTable{
		IDs:        make([]TranscriptID, matched),
		Factors:    attrs.factors,
		Attributes: make([][]float64, len(attrs.factors)),
	}
	for k, i := range attrRows {
		m.IDs[k] = attrs.ids[i]
	}
	for f := range attrs.factors {
		col := make([]float64, matched)
		for k, i := range attrRows {
			col[k] = attrs.values[f][i]
		}
		m.Attributes[f] = col
	}

	m.Samples = append([]string(nil), expr.samples...)
	sort.Strings(m.Samples)
	for _, sample := range m.Samples {
		src, _ := expr.Column(sample)
		col := make([]float64, matched)
		for k, j := range exprRows {
			col[k] = math.Log2(src[j] + PseudoCount)
		}
		m.Expression = append(m.Expression, col)
	}
	return m, nil
}

// AggregateFactor bins the merged table by one factor and summarises every
// sample against it
func (r *BiasAggregator) AggregateFactor(m *MergedTable, factor string) (*FactorSummary, error) {
	fi := -1
	for i, f := range m.Factors {
		if f == factor {
			fi = i
		}
	}
	if fi < 0 {
		return nil, &InvalidAttributeError{Attribute: factor, Value: "unknown factor"}
	}
	n := len(m.IDs)
	if n < r.cfg.BinCount {
		return nil, &InsufficientDataError{Attribute: factor, Rows: n, Bins: r.cfg.BinCount}
	}

	values := m.Attributes[fi]
	bins := QuantileBins(values, r.cfg.BinCount)
	factorBinned := aggregateBins(values, bins, r.cfg.Aggregation)
	nonEmpty := len(finite(factorBinned))
	if nonEmpty < 2 {
		return nil, &DegenerateBinError{Attribute: factor, Bin: len(bins) - 1,
			Reason: "fewer than two non-empty bins"}
	}

	summary := &FactorSummary{
		Factor: factor,
		Binned: &BinnedMeans{
			Factor:  factor,
			Samples: m.Samples,
			Rows:    make([]BinRow, len(bins)),
		},
		Correlations: make([]float64, len(m.Samples)),
		Gradients:    make([]float64, len(m.Samples)),
	}
	for i, bin := range bins {
		summary.Binned.Rows[i] = BinRow{
			Lower:   bin.Lower,
			Upper:   bin.Upper,
			Size:    len(bin.Rows),
			Samples: make([]float64, len(m.Samples)),
			Factor:  factorBinned[i],
		}
	}

	for si, sample := range m.Samples {
		binned := aggregateBins(m.Expression[si], bins, r.cfg.Aggregation)
		normalized, ok := minMaxNormalize(binned)
		if !ok {
			return nil, &DegenerateBinError{Attribute: factor, Sample: sample,
				Bin: firstFinite(binned), Reason: "binned values have max == min"}
		}
		for i := range bins {
			summary.Binned.Rows[i].Samples[si] = normalized[i]
		}
		x, y := pairwiseFinite(factorBinned, normalized)
		summary.Correlations[si] = spearman(x, y)
		summary.Gradients[si] = gradient(x, y)
	}
	log.Debugf("Factor `%s`: %d bins, %d non-empty", factor, len(bins), nonEmpty)
	return summary, nil
}

// Aggregate summarises every factor of the merged table, in factor name
// order. Factors run concurrently on up to Config.Workers goroutines and each
// result lands in its own slot. Once a factor fails, factors after it are no
// longer started, and the error of the first failing factor is returned, so
// a failed run reports the same factor as a sequential one. When onFactor is
// not nil it is called in factor order from the calling goroutine, for every
// factor before the first failure.
func (r *BiasAggregator) Aggregate(m *MergedTable, onFactor func(*FactorSummary) error) (*BiasSummary, error) {
	factors := append([]string(nil), m.Factors...)
	sort.Strings(factors)
	results := make([]*FactorSummary, len(factors))
	errs := make([]error, len(factors))

	var mu sync.Mutex
	firstFailed := len(factors)
	failedBefore := func(i int) bool {
		mu.Lock()
		defer mu.Unlock()
		return firstFailed < i
	}

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for i := range factors {
		if failedBefore(i) {
			break
		}
		i := i
		g.Go(func() error {
			if failedBefore(i) {
				return nil
			}
			s, err := r.AggregateFactor(m, factors[i])
			if err != nil {
				mu.Lock()
				if i < firstFailed {
					firstFailed = i
				}
				mu.Unlock()
				errs[i] = err
				return err
			}
			results[i] = s
			return nil
		})
	}
	g.Wait()

	for i, s := range results {
		if errs[i] != nil {
			return nil, errs[i]
		}
		if onFactor != nil {
			if err := onFactor(s); err != nil {
				return nil, err
			}
		}
	}
	return &BiasSummary{Samples: m.Samples, Factors: results}, nil
}

// FactorNames returns the factor of each column of the summary matrices
func (r *BiasSummary) FactorNames() []string {
	names := make([]string, len(r.Factors))
	for i, f := range r.Factors {
		names[i] = f.Factor
	}
	return names
}

// CorrelationMatrix has one row per sample and one column per factor
func (r *BiasSummary) CorrelationMatrix() *mat.Dense {
	return r.matrix(func(f *FactorSummary) []float64 { return f.Correlations })
}

// GradientMatrix has one row per sample and one column per factor
func (r *BiasSummary) GradientMatrix() *mat.Dense {
	return r.matrix(func(f *FactorSummary) []float64 { return f.Gradients })
}

func (r *BiasSummary) matrix(column func(*FactorSummary) []float64) *mat.Dense {
	if len(r.Samples) == 0 || len(r.Factors) == 0 {
		return &mat.Dense{}
	}
	M := mat.NewDense(len(r.Samples), len(r.Factors), nil)
	for j, f := range r.Factors {
		M.SetCol(j, column(f))
	}
	return M
}

// firstFinite returns the index of the first defined entry, -1 if none
func firstFinite(a []float64) int {
	for i, x := range a {
		if !math.IsNaN(x) {
			return i
		}
	}
	return -1
}
