/**
 * Filename: /Users/bao/code/rnaseqqc/base.go
 * Path: /Users/bao/code/rnaseqqc
 * Created Date: Tuesday, January 2nd 2018, 8:07:22 pm
 * Author: bao
 *
 * Copyright (c) 2018 Haibao Tang
 */

package rnaseqqc

import (
	"fmt"
	"math"
	"os"
	"path"
	"strings"

	logging "github.com/op/go-logging"
	"github.com/pkg/errors"
)

const (
	// Version is the current version of rnaseqqc
	Version = "0.3.1"
	// DefaultBinCount is the number of quantile bins per bias factor (bias_bin)
	DefaultBinCount = 10
	// PseudoCount is added to abundances before the log2 transform
	PseudoCount = 0.1
	// DefaultAggregation names the reduction applied within each bin
	DefaultAggregation = "mean"
	// BinnedMeansPrecision is the number of decimals in the per-factor tables
	BinnedMeansPrecision = 4
	// SummaryPrecision is the number of decimals in the correlation and gradient tables
	SummaryPrecision = 6
	// AttributesFile is the default output of characterise
	AttributesFile = "transcripts_attributes.tsv.gz"
	// ExpressionFile is the default output of merge
	ExpressionFile = "abundance_estimates.tsv"
	// CorrelationFile holds the Spearman correlations of all factors
	CorrelationFile = "binned_means_correlation.tsv"
	// GradientFile holds the regression slopes of all factors
	GradientFile = "binned_means_gradients.tsv"
	// BinnedMeansPrefix prefixes the per-factor binned tables
	BinnedMeansPrefix = "means_binned_"
)

var log = logging.MustGetLogger("rnaseqqc")
var format = logging.MustStringFormatter(
	`%{color}%{time:15:04:05} %{shortfunc} | %{level:.6s} %{color:reset} %{message}`,
)

// Backend is the default stderr output
var Backend = logging.NewLogBackend(os.Stderr, "", 0)

// BackendFormatter contains the fancy debug formatter
var BackendFormatter = logging.NewBackendFormatter(Backend, format)

// RemoveExt returns the substring minus the extension
func RemoveExt(filename string) string {
	return strings.TrimSuffix(filename, path.Ext(filename))
}

// Percentage prints a human readable message of the percentage
func Percentage(a, b int) string {
	if b == 0 {
		return fmt.Sprintf("%d of %d", a, b)
	}
	return fmt.Sprintf("%d of %d (%.1f %%)", a, b, float64(a)*100./float64(b))
}

// mustExist checks that the input file is there before any work starts
func mustExist(filename string) error {
	if _, err := os.Stat(filename); err != nil {
		return errors.Wrapf(err, "cannot find `%s`", filename)
	}
	return nil
}

// formatFloat renders a fixed-point float, NaN becomes an empty field
func formatFloat(x float64, prec int) string {
	if math.IsNaN(x) {
		return ""
	}
	return fmt.Sprintf("%.*f", prec, x)
}

// finite drops the NaN entries of a slice
func finite(a []float64) []float64 {
	ans := make([]float64, 0, len(a))
	for _, x := range a {
		if !math.IsNaN(x) {
			ans = append(ans, x)
		}
	}
	return ans
}
