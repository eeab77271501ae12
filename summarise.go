/*
 *  summarise.go
 *  rnaseqqc
 *
 *  Created by Haibao Tang on 10/16/26
 *  Copyright © 2026 Haibao Tang. All rights reserved.
 */

package rnaseqqc

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Summariser relates abundances to transcript attributes (summariseBias).
//
// One binned table is written per bias factor, in factor name order, then a
// correlation table and a gradient table cover all factors. If a factor
// fails, the tables of the factors before it are left in place and listed
// in OutBinnedfiles.
type Summariser struct {
	Attributesfile string
	Expressionfile string
	OutDir         string
	Config         Config
	WriteNpy       bool
	// Output files
	OutBinnedfiles     []string
	OutCorrelationfile string
	OutGradientfile    string
	Summary            *BiasSummary
}

// BinnedMeansFile is where the binned table of a factor goes
func BinnedMeansFile(outdir, factor string) string {
	return filepath.Join(outdir, BinnedMeansPrefix+factor+".tsv")
}

// Run reads both tables and writes all summaries
func (r *Summariser) Run() error {
	for _, filename := range []string{r.Attributesfile, r.Expressionfile} {
		if err := mustExist(filename); err != nil {
			return err
		}
	}
	aggregator, err := NewBiasAggregator(r.Config)
	if err != nil {
		return err
	}
	cfg := aggregator.Config()
	log.Noticef("Summarise bias with %d bins (%s)", cfg.BinCount, cfg.AggregationName)

	attrs, err := ReadAttributeTable(r.Attributesfile)
	if err != nil {
		return err
	}
	expr, err := ReadExpressionTable(r.Expressionfile)
	if err != nil {
		return err
	}
	merged, err := aggregator.Join(attrs, expr)
	if err != nil {
		return err
	}

	if r.OutDir == "" {
		r.OutDir = "."
	}
	if err := os.MkdirAll(r.OutDir, 0755); err != nil {
		return errors.Wrapf(err, "cannot create `%s`", r.OutDir)
	}

	r.OutBinnedfiles = r.OutBinnedfiles[:0]
	summary, err := aggregator.Aggregate(merged, func(s *FactorSummary) error {
		outfile := BinnedMeansFile(r.OutDir, s.Factor)
		if err := writeFile(outfile, func(w io.Writer) error {
			return WriteBinnedMeans(w, s.Binned)
		}); err != nil {
			return err
		}
		r.OutBinnedfiles = append(r.OutBinnedfiles, outfile)
		log.Noticef("Binned means of `%s` written to `%s`", s.Factor, outfile)
		return nil
	})
	if err != nil {
		return err
	}
	r.Summary = summary
	return r.writeSummaries()
}

// writeSummaries writes the correlation and gradient tables
func (r *Summariser) writeSummaries() error {
	s := r.Summary
	factors := s.FactorNames()
	corr, grad := s.CorrelationMatrix(), s.GradientMatrix()

	r.OutCorrelationfile = filepath.Join(r.OutDir, CorrelationFile)
	if err := writeFile(r.OutCorrelationfile, func(w io.Writer) error {
		return WriteSummaryMatrix(w, factors, s.Samples, corr)
	}); err != nil {
		return err
	}
	log.Noticef("Correlations of %d samples written to `%s`", len(s.Samples), r.OutCorrelationfile)

	r.OutGradientfile = filepath.Join(r.OutDir, GradientFile)
	if err := writeFile(r.OutGradientfile, func(w io.Writer) error {
		return WriteSummaryMatrix(w, factors, s.Samples, grad)
	}); err != nil {
		return err
	}
	log.Noticef("Gradients of %d samples written to `%s`", len(s.Samples), r.OutGradientfile)

	if r.WriteNpy {
		if err := writeNpy(RemoveExt(r.OutCorrelationfile)+".npy", corr); err != nil {
			return err
		}
		if err := writeNpy(RemoveExt(r.OutGradientfile)+".npy", grad); err != nil {
			return err
		}
	}
	log.Notice("Success")
	return nil
}
