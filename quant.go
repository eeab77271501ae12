/*
 *  quant.go
 *  rnaseqqc
 *
 *  Created by Haibao Tang on 10/16/26
 *  Copyright © 2026 Haibao Tang. All rights reserved.
 */

package rnaseqqc

import (
	"encoding/csv"
	"io"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// QuantRecord is one line of a Sailfish quant.sf file
type QuantRecord struct {
	Name            string  `csv:"Name"`
	Length          int     `csv:"Length"`
	EffectiveLength float64 `csv:"EffectiveLength"`
	TPM             float64 `csv:"TPM"`
	NumReads        float64 `csv:"NumReads"`
}

// Merger collects the TPM of every sample into one abundance table
// (mergeResults). Either Quantfiles or Abundancefile is given.
type Merger struct {
	Quantfiles    []string // one quant.sf per sample, in <sample>/quant.sf
	Abundancefile string   // an already merged table, validated and copied
	// Output file
	OutExpressionfile string
}

// SampleID names a sample after the directory holding its quant.sf
func SampleID(quantfile string) string {
	return filepath.Base(filepath.Dir(quantfile))
}

// ParseQuantFile reads the records of a quant.sf, `#` lines are comments
func ParseQuantFile(r io.Reader) ([]*QuantRecord, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	records := []*QuantRecord{}
	if err := gocsv.UnmarshalCSV(cr, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// readQuantFile returns the TPM of each transcript in file order
func readQuantFile(filename string) ([]TranscriptID, []float64, error) {
	log.Noticef("Parse quant file `%s`", filename)
	fh, err := xopen.Ropen(filename)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "cannot open `%s`", filename)
	}
	defer fh.Close()
	records, err := ParseQuantFile(fh)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "quant file `%s`", filename)
	}
	ids := make([]TranscriptID, len(records))
	tpms := make([]float64, len(records))
	for i, rec := range records {
		ids[i] = TranscriptID(rec.Name)
		tpms[i] = rec.TPM
	}
	return ids, tpms, nil
}

// MergeQuantFiles inner-joins the TPM columns of all samples on the
// transcript name, keeping the row order of the first file
func MergeQuantFiles(quantfiles []string) (*ExpressionTable, error) {
	if len(quantfiles) == 0 {
		return nil, errors.New("no quant files to merge")
	}
	var (
		ids     []TranscriptID
		samples []string
		columns []map[TranscriptID]float64
	)
	seen := map[string]string{}
	for i, quantfile := range quantfiles {
		sample := SampleID(quantfile)
		if prev, dup := seen[sample]; dup {
			return nil, &InvalidExpressionError{Sample: sample,
				Value: "same sample in `" + prev + "` and `" + quantfile + "`"}
		}
		seen[sample] = quantfile

		qids, tpms, err := readQuantFile(quantfile)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			ids = qids
		}
		col := make(map[TranscriptID]float64, len(qids))
		for j, id := range qids {
			col[id] = tpms[j]
		}
		samples = append(samples, sample)
		columns = append(columns, col)
	}

	var kept []TranscriptID
	for _, id := range ids {
		shared := true
		for _, col := range columns[1:] {
			if _, ok := col[id]; !ok {
				shared = false
				break
			}
		}
		if shared {
			kept = append(kept, id)
		}
	}
	if len(kept) != len(ids) {
		log.Warningf("Transcripts shared by all samples: %s", Percentage(len(kept), len(ids)))
	}

	values := make([][]float64, len(samples))
	for i, col := range columns {
		values[i] = make([]float64, len(kept))
		for j, id := range kept {
			values[i][j] = col[id]
		}
	}
	return NewExpressionTable(kept, samples, values)
}

// Run merges the abundances and writes the expression table
func (r *Merger) Run() error {
	if r.OutExpressionfile == "" {
		r.OutExpressionfile = ExpressionFile
	}
	var (
		table *ExpressionTable
		err   error
	)
	if r.Abundancefile != "" && len(r.Quantfiles) > 0 {
		return errors.Errorf("cannot merge %d quant files and use `%s` at the same time",
			len(r.Quantfiles), r.Abundancefile)
	}
	if r.Abundancefile != "" {
		if err = mustExist(r.Abundancefile); err != nil {
			return err
		}
		table, err = ReadExpressionTable(r.Abundancefile)
	} else {
		for _, quantfile := range r.Quantfiles {
			if err = mustExist(quantfile); err != nil {
				return err
			}
		}
		table, err = MergeQuantFiles(r.Quantfiles)
	}
	if err != nil {
		return err
	}

	if err := writeFile(r.OutExpressionfile, func(w io.Writer) error {
		return WriteExpressionTable(w, table)
	}); err != nil {
		return err
	}
	log.Noticef("Abundances of %d transcripts in %d samples written to `%s`",
		table.Len(), len(table.Samples()), r.OutExpressionfile)
	return nil
}
