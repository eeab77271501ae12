/*
 *  output.go
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

	"github.com/grailbio/base/tsv"
	"github.com/kshedden/gonpy"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
	"gonum.org/v1/gonum/mat"
)

// SampleColumn labels the rows of the correlation and gradient tables
const SampleColumn = "sample"

// WriteBinnedMeans writes one row per bin: the normalized sample columns
// followed by the factor column in its original scale
func WriteBinnedMeans(w io.Writer, b *BinnedMeans) error {
	tw := tsv.NewWriter(w)
	for _, sample := range b.Samples {
		tw.WriteString(sample)
	}
	tw.WriteString(b.Factor)
	if err := tw.EndLine(); err != nil {
		return err
	}
	for _, row := range b.Rows {
		for _, x := range row.Samples {
			tw.WriteString(formatFloat(x, BinnedMeansPrecision))
		}
		tw.WriteString(formatFloat(row.Factor, BinnedMeansPrecision))
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteSummaryMatrix writes a samples x factors matrix, one column per factor
// followed by the sample name
func WriteSummaryMatrix(w io.Writer, factors, samples []string, M mat.Matrix) error {
	tw := tsv.NewWriter(w)
	for _, factor := range factors {
		tw.WriteString(factor)
	}
	tw.WriteString(SampleColumn)
	if err := tw.EndLine(); err != nil {
		return err
	}
	for i, sample := range samples {
		for j := range factors {
			tw.WriteString(formatFloat(M.At(i, j), SummaryPrecision))
		}
		tw.WriteString(sample)
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// writeFile opens filename (gzipped if it ends in .gz) and hands it to write
func writeFile(filename string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return errors.Wrapf(err, "cannot create `%s`", filepath.Dir(filename))
	}
	fw, err := xopen.Wopen(filename)
	if err != nil {
		return errors.Wrapf(err, "cannot create `%s`", filename)
	}
	if err := write(fw); err != nil {
		fw.Close()
		return errors.Wrapf(err, "cannot write `%s`", filename)
	}
	return fw.Close()
}

// writeNpy serializes a dense matrix in row-major order for plotting
func writeNpy(filename string, M *mat.Dense) error {
	r, c := M.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, M.RawRowView(i)...)
	}
	npw, err := gonpy.NewFileWriter(filename)
	if err != nil {
		return errors.Wrapf(err, "cannot create `%s`", filename)
	}
	npw.Shape = []int{r, c}
	if err := npw.WriteFloat64(data); err != nil {
		return errors.Wrapf(err, "cannot write `%s`", filename)
	}
	log.Noticef("Matrix of shape (%d, %d) written to `%s`", r, c, filename)
	return nil
}
