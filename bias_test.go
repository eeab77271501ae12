/*
 *  bias_test.go
 *  rnaseqqc
 *
 *  Created by Haibao Tang on 10/16/26
 *  Copyright © 2026 Haibao Tang. All rights reserved.
 */

package rnaseqqc_test

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanghaibao/rnaseqqc"
)

// makeIDs returns t000, t001, ...
func makeIDs(n int) []rnaseqqc.TranscriptID {
	ids := make([]rnaseqqc.TranscriptID, n)
	for i := range ids {
		ids[i] = rnaseqqc.TranscriptID(fmt.Sprintf("t%03d", i))
	}
	return ids
}

// series returns f(0), f(1), ..., f(n-1)
func series(n int, f func(i int) float64) []float64 {
	a := make([]float64, n)
	for i := range a {
		a[i] = f(i)
	}
	return a
}

func newAggregator(t *testing.T, bins int) *rnaseqqc.BiasAggregator {
	cfg := rnaseqqc.DefaultConfig()
	cfg.BinCount = bins
	agg, err := rnaseqqc.NewBiasAggregator(cfg)
	require.NoError(t, err)
	return agg
}

func merge(t *testing.T, agg *rnaseqqc.BiasAggregator, ids []rnaseqqc.TranscriptID,
	factors []string, attrs [][]float64, samples []string, expr [][]float64) *rnaseqqc.MergedTable {
	at, err := rnaseqqc.NewAttributeTable(ids, factors, attrs)
	require.NoError(t, err)
	et, err := rnaseqqc.NewExpressionTable(ids, samples, expr)
	require.NoError(t, err)
	m, err := agg.Join(at, et)
	require.NoError(t, err)
	return m
}

func TestMonotoneFactor(t *testing.T) {
	n := 100
	agg := newAggregator(t, 10)
	m := merge(t, agg, makeIDs(n),
		[]string{"length"}, [][]float64{series(n, func(i int) float64 { return float64(i + 1) })},
		[]string{"S1"}, [][]float64{series(n, func(i int) float64 { return float64(i + 1) })})

	s, err := agg.AggregateFactor(m, "length")
	require.NoError(t, err)
	if len(s.Binned.Rows) != 10 {
		t.Fatalf("Expected %d bins, got %d", 10, len(s.Binned.Rows))
	}
	assert.True(t, s.Gradients[0] > 0, "gradient %f should be positive", s.Gradients[0])
	assert.True(t, s.Correlations[0] > 0.9, "correlation %f should be close to 1", s.Correlations[0])
	for i, row := range s.Binned.Rows {
		assert.Equal(t, 10, row.Size, "bin %d", i)
	}
	assert.InDelta(t, 5.5, s.Binned.Rows[0].Factor, 1e-9)
	assert.InDelta(t, 95.5, s.Binned.Rows[9].Factor, 1e-9)
}

func TestNormalizedRange(t *testing.T) {
	n := 60
	agg := newAggregator(t, 6)
	m := merge(t, agg, makeIDs(n),
		[]string{"GC_Content", "AT"},
		[][]float64{
			series(n, func(i int) float64 { return float64(i%17) / 17 }),
			series(n, func(i int) float64 { return float64(i%13) / 13 }),
		},
		[]string{"S2", "S1"},
		[][]float64{
			series(n, func(i int) float64 { return float64((i * 37) % 101) }),
			series(n, func(i int) float64 { return float64(i) }),
		})
	summary, err := agg.Aggregate(m, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2"}, summary.Samples)
	assert.Equal(t, []string{"AT", "GC_Content"}, summary.FactorNames())

	for _, f := range summary.Factors {
		assert.True(t, len(f.Binned.Rows) <= 6)
		for si := range summary.Samples {
			lo, hi := 1.0, 0.0
			for _, row := range f.Binned.Rows {
				x := row.Samples[si]
				if x < lo {
					lo = x
				}
				if x > hi {
					hi = x
				}
			}
			assert.Equal(t, 0.0, lo, "factor %s sample %d", f.Factor, si)
			assert.Equal(t, 1.0, hi, "factor %s sample %d", f.Factor, si)
		}
	}
	r, c := summary.CorrelationMatrix().Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
}

func TestSwapSamples(t *testing.T) {
	n := 50
	up := series(n, func(i int) float64 { return float64(i) })
	down := series(n, func(i int) float64 { return float64(n - i) })
	length := series(n, func(i int) float64 { return float64(i) })
	agg := newAggregator(t, 5)

	a := merge(t, agg, makeIDs(n), []string{"length"}, [][]float64{length},
		[]string{"S1", "S2"}, [][]float64{up, down})
	b := merge(t, agg, makeIDs(n), []string{"length"}, [][]float64{length},
		[]string{"S1", "S2"}, [][]float64{down, up})

	sa, err := agg.Aggregate(a, nil)
	require.NoError(t, err)
	sb, err := agg.Aggregate(b, nil)
	require.NoError(t, err)

	fa, fb := sa.Factors[0], sb.Factors[0]
	assert.InDelta(t, 1.0, fa.Correlations[0], 1e-9)
	assert.InDelta(t, -1.0, fa.Correlations[1], 1e-9)
	assert.InDelta(t, fa.Correlations[0], fb.Correlations[1], 1e-12)
	assert.InDelta(t, fa.Correlations[1], fb.Correlations[0], 1e-12)
	assert.InDelta(t, fa.Gradients[0], fb.Gradients[1], 1e-12)
	assert.InDelta(t, fa.Gradients[1], fb.Gradients[0], 1e-12)
}

func TestInsufficientData(t *testing.T) {
	n := 5
	agg := newAggregator(t, 20)
	m := merge(t, agg, makeIDs(n),
		[]string{"length"}, [][]float64{series(n, func(i int) float64 { return float64(i) })},
		[]string{"S1"}, [][]float64{series(n, func(i int) float64 { return float64(i) })})
	_, err := agg.AggregateFactor(m, "length")
	var target *rnaseqqc.InsufficientDataError
	if !errors.As(err, &target) {
		t.Fatalf("Expected InsufficientDataError, got %v", err)
	}
	assert.Equal(t, 5, target.Rows)
	assert.Equal(t, 20, target.Bins)
}

func TestDegenerateBins(t *testing.T) {
	n := 30
	agg := newAggregator(t, 3)
	increasing := series(n, func(i int) float64 { return float64(i) })
	constant := series(n, func(i int) float64 { return 4 })

	m := merge(t, agg, makeIDs(n), []string{"length"}, [][]float64{increasing},
		[]string{"flat"}, [][]float64{constant})
	_, err := agg.AggregateFactor(m, "length")
	var target *rnaseqqc.DegenerateBinError
	require.True(t, errors.As(err, &target), "got %v", err)
	assert.Equal(t, "flat", target.Sample)
	assert.Equal(t, "length", target.Attribute)

	m = merge(t, agg, makeIDs(n), []string{"GC_Content"}, [][]float64{constant},
		[]string{"S1"}, [][]float64{increasing})
	_, err = agg.AggregateFactor(m, "GC_Content")
	require.True(t, errors.As(err, &target), "got %v", err)
	assert.Equal(t, "GC_Content", target.Attribute)
}

func TestCollidingEdges(t *testing.T) {
	n := 40
	agg := newAggregator(t, 10)
	// three quarters of the rows share the same value
	values := series(n, func(i int) float64 {
		if i < 30 {
			return 0.25
		}
		return float64(i)
	})
	m := merge(t, agg, makeIDs(n), []string{"AA"}, [][]float64{values},
		[]string{"S1"}, [][]float64{series(n, func(i int) float64 { return float64(i) })})
	s, err := agg.AggregateFactor(m, "AA")
	require.NoError(t, err)
	assert.True(t, len(s.Binned.Rows) < 10, "got %d bins", len(s.Binned.Rows))
	total := 0
	for _, row := range s.Binned.Rows {
		total += row.Size
	}
	assert.Equal(t, n, total)
}

func TestJoin(t *testing.T) {
	agg := newAggregator(t, 2)
	at, err := rnaseqqc.NewAttributeTable(
		[]rnaseqqc.TranscriptID{"a", "b", "c", "d"},
		[]string{"length"}, [][]float64{{1, 2, 3, 4}})
	require.NoError(t, err)
	et, err := rnaseqqc.NewExpressionTable(
		[]rnaseqqc.TranscriptID{"d", "b", "x"},
		[]string{"S1"}, [][]float64{{0, 1.9, 5}})
	require.NoError(t, err)

	m, err := agg.Join(at, et)
	require.NoError(t, err)
	assert.Equal(t, []rnaseqqc.TranscriptID{"b", "d"}, m.IDs)
	assert.Equal(t, []float64{2, 4}, m.Attributes[0])
	assert.InDelta(t, 1.0, m.Expression[0][0], 1e-12) // log2(1.9 + 0.1)
	assert.InDelta(t, -3.321928, m.Expression[0][1], 1e-6)

	cfg := rnaseqqc.DefaultConfig()
	cfg.BinCount = 2
	cfg.MaxDropFraction = 0.25
	strict, err := rnaseqqc.NewBiasAggregator(cfg)
	require.NoError(t, err)
	_, err = strict.Join(at, et)
	var target *rnaseqqc.IdentifierMismatchError
	require.True(t, errors.As(err, &target), "got %v", err)
	assert.Equal(t, 2, target.Matched)
}

func TestMedianAggregation(t *testing.T) {
	cfg := rnaseqqc.DefaultConfig()
	cfg.BinCount = 2
	cfg.Aggregation = nil
	cfg.AggregationName = "median"
	agg, err := rnaseqqc.NewBiasAggregator(cfg)
	require.NoError(t, err)
	m := merge(t, agg, makeIDs(6), []string{"length"}, [][]float64{{1, 2, 3, 4, 5, 60}},
		[]string{"S1"}, [][]float64{{1, 2, 3, 4, 5, 6}})
	s, err := agg.AggregateFactor(m, "length")
	require.NoError(t, err)
	assert.Equal(t, 2.0, s.Binned.Rows[0].Factor)
	assert.Equal(t, 5.0, s.Binned.Rows[1].Factor)
}

func TestFirstFailingFactorWins(t *testing.T) {
	n := 40
	cfg := rnaseqqc.DefaultConfig()
	cfg.BinCount = 5
	cfg.Workers = 8
	agg, err := rnaseqqc.NewBiasAggregator(cfg)
	require.NoError(t, err)

	increasing := series(n, func(i int) float64 { return float64(i + 1) })
	constant := series(n, func(i int) float64 { return 0.5 })
	m := merge(t, agg, makeIDs(n),
		[]string{"length", "GC_Content", "AG", "AC", "AA"},
		[][]float64{increasing, constant, increasing, constant, increasing},
		[]string{"S1"}, [][]float64{increasing})

	for run := 0; run < 50; run++ {
		var done []string
		_, err := agg.Aggregate(m, func(s *rnaseqqc.FactorSummary) error {
			done = append(done, s.Factor)
			return nil
		})
		var target *rnaseqqc.DegenerateBinError
		require.True(t, errors.As(err, &target), "got %v", err)
		assert.Equal(t, "AC", target.Attribute, "run %d", run)
		assert.Equal(t, []string{"AA"}, done, "run %d", run)
	}
}
