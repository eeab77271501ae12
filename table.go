/*
 *  table.go
 *  rnaseqqc
 *
 *  Created by Haibao Tang on 10/16/26
 *  Copyright © 2026 Haibao Tang. All rights reserved.
 */

package rnaseqqc

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"strconv"
	"strings"

	"github.com/csimplestring/go-csv/detector"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// TranscriptID keys the rows of both attribute and expression tables
type TranscriptID string

const (
	// IDColumn is the key column of the attribute table
	IDColumn = "id"
	// NameColumn is the key column of the expression table
	NameColumn = "Name"
	// LengthColumn is the sequence length, log2 transformed before use
	LengthColumn = "length"
	// GCContentColumn is the name pGC takes after loading
	GCContentColumn = "GC_Content"
	// Nucleotides are combined into the 16 dinucleotide factors
	Nucleotides = "ATCG"
)

// intermediateColumns are written by characterise but only used to derive other
// columns, they are never bias factors
var intermediateColumns = []string{
	"nAT", "nGC", "pAT", "pA", "pG", "pC", "pT", "nA",
	"nG", "nC", "nT", "ncodons", "mCountsOthers", "nUnk", "nN", "pN",
}

// Dinucleotides returns the 16 pairs over ATCG in product order
func Dinucleotides() []string {
	pairs := make([]string, 0, len(Nucleotides)*len(Nucleotides))
	for _, a := range Nucleotides {
		for _, b := range Nucleotides {
			pairs = append(pairs, string(a)+string(b))
		}
	}
	return pairs
}

// IsBiasFactor tells whether a column name is one of the recognized factors
func IsBiasFactor(name string) bool {
	if name == LengthColumn || name == GCContentColumn {
		return true
	}
	for _, di := range Dinucleotides() {
		if name == di {
			return true
		}
	}
	return false
}

// rawColumn is the role of a column in the characterise output
type rawColumn int

const (
	rawUnknown rawColumn = iota
	rawRequired
	rawIntermediate
)

func classifyRawColumn(name string) rawColumn {
	if name == LengthColumn || name == "pGC" {
		return rawRequired
	}
	for _, di := range Dinucleotides() {
		if name == di {
			return rawRequired
		}
	}
	for _, col := range intermediateColumns {
		if name == col {
			return rawIntermediate
		}
	}
	return rawUnknown
}

// AttributeTable holds the bias factors of each transcript, one column per factor
type AttributeTable struct {
	ids     []TranscriptID
	factors []string
	values  [][]float64 // values[factor][row]
}

// NewAttributeTable validates and wraps factor columns. Every factor must be a
// recognized bias factor and every value must be finite.
func NewAttributeTable(ids []TranscriptID, factors []string, values [][]float64) (*AttributeTable, error) {
	if len(factors) == 0 {
		return nil, &InvalidAttributeError{Attribute: IDColumn, Value: "no bias factors"}
	}
	if len(values) != len(factors) {
		return nil, fmt.Errorf("got %d columns for %d factors", len(values), len(factors))
	}
	seen := map[string]bool{}
	for i, factor := range factors {
		if !IsBiasFactor(factor) {
			return nil, &InvalidAttributeError{Attribute: factor, Value: "unexpected column"}
		}
		if seen[factor] {
			return nil, &InvalidAttributeError{Attribute: factor, Value: "duplicate column"}
		}
		seen[factor] = true
		if len(values[i]) != len(ids) {
			return nil, fmt.Errorf("factor `%s` has %d values for %d ids", factor, len(values[i]), len(ids))
		}
		for j, x := range values[i] {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, &InvalidAttributeError{Attribute: factor, ID: ids[j],
					Value: strconv.FormatFloat(x, 'g', -1, 64)}
			}
		}
	}
	if err := checkUniqueIDs(ids, IDColumn); err != nil {
		return nil, err
	}
	return &AttributeTable{ids: ids, factors: factors, values: values}, nil
}

// Len returns the number of transcripts
func (r *AttributeTable) Len() int { return len(r.ids) }

// IDs returns the row keys in file order
func (r *AttributeTable) IDs() []TranscriptID { return r.ids }

// Factors returns the bias factor names in file order
func (r *AttributeTable) Factors() []string { return r.factors }

// Column returns the values of a factor
func (r *AttributeTable) Column(factor string) ([]float64, bool) {
	for i, f := range r.factors {
		if f == factor {
			return r.values[i], true
		}
	}
	return nil, false
}

// ReadAttributeTable parses a (gzipped) characterise output
func ReadAttributeTable(filename string) (*AttributeTable, error) {
	log.Noticef("Parse attributes file `%s`", filename)
	fh, err := xopen.Ropen(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open `%s`", filename)
	}
	defer fh.Close()
	t, err := ParseAttributeTable(fh)
	if err != nil {
		return nil, errors.Wrapf(err, "attributes file `%s`", filename)
	}
	log.Noticef("Imported %d transcripts with %d bias factors", t.Len(), len(t.factors))
	return t, nil
}

// ParseAttributeTable reads the tab-separated characterise output and derives
// the bias factors:
//
//  - dinucleotide counts become fractions of the sequence length
//  - intermediate base and codon counts are dropped
//  - length is log2 transformed
//  - pGC is renamed GC_Content
func ParseAttributeTable(r io.Reader) (*AttributeTable, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, &InvalidAttributeError{Attribute: IDColumn, Value: "empty table"}
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(header[0]) != IDColumn {
		return nil, &InvalidAttributeError{Attribute: header[0], Value: "first column must be `id`"}
	}

	// Validate the header eagerly against the schema
	colIdx := map[string]int{}
	for i, name := range header[1:] {
		name = strings.TrimSpace(name)
		switch classifyRawColumn(name) {
		case rawUnknown:
			return nil, &InvalidAttributeError{Attribute: name, Value: "unexpected column"}
		case rawRequired:
			if _, dup := colIdx[name]; dup {
				return nil, &InvalidAttributeError{Attribute: name, Value: "duplicate column"}
			}
			colIdx[name] = i + 1
		}
	}
	factors := []string{}
	rawNames := []string{}
	for _, name := range header[1:] {
		name = strings.TrimSpace(name)
		if classifyRawColumn(name) != rawRequired {
			continue
		}
		rawNames = append(rawNames, name)
		factors = append(factors, factorName(name))
	}
	required := append([]string{LengthColumn, "pGC"}, Dinucleotides()...)
	for _, name := range required {
		if _, ok := colIdx[name]; !ok {
			return nil, &InvalidAttributeError{Attribute: name, Value: "missing column"}
		}
	}

	var ids []TranscriptID
	values := make([][]float64, len(factors))
	lengthIdx := colIdx[LengthColumn]
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		id := TranscriptID(strings.TrimSpace(rec[0]))
		if len(rec) < len(header) {
			return nil, &InvalidAttributeError{Attribute: factorName(header[len(rec)]), ID: id,
				Value: "missing field"}
		}
		if len(rec) > len(header) {
			return nil, &InvalidAttributeError{Attribute: IDColumn, ID: id,
				Value: fmt.Sprintf("%d fields for %d columns", len(rec), len(header))}
		}
		length, err := parseAttribute(LengthColumn, id, rec[lengthIdx])
		if err != nil {
			return nil, err
		}
		if length <= 0 {
			return nil, &InvalidAttributeError{Attribute: LengthColumn, ID: id, Value: rec[lengthIdx]}
		}
		for i, name := range rawNames {
			x, err := parseAttribute(factors[i], id, rec[colIdx[name]])
			if err != nil {
				return nil, err
			}
			switch {
			case name == LengthColumn:
				x = math.Log2(x)
			case len(name) == 2:
				x /= length
			}
			values[i] = append(values[i], x)
		}
		ids = append(ids, id)
	}
	return NewAttributeTable(ids, factors, values)
}

// factorName maps a characterise column to the factor it becomes
func factorName(column string) string {
	column = strings.TrimSpace(column)
	if column == "pGC" {
		return GCContentColumn
	}
	return column
}

// parseAttribute converts a single field, rejecting blanks and NA
func parseAttribute(attribute string, id TranscriptID, field string) (float64, error) {
	x, ok := parseNumber(field)
	if !ok {
		return 0, &InvalidAttributeError{Attribute: attribute, ID: id, Value: field}
	}
	return x, nil
}

// parseNumber accepts finite numbers only
func parseNumber(field string) (float64, bool) {
	x, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}
	return x, true
}

// checkUniqueIDs rejects empty and repeated row keys
func checkUniqueIDs(ids []TranscriptID, column string) error {
	seen := make(map[TranscriptID]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return &InvalidAttributeError{Attribute: column, Value: "empty id"}
		}
		if seen[id] {
			return &InvalidAttributeError{Attribute: column, ID: id, Value: "duplicate id"}
		}
		seen[id] = true
	}
	return nil
}

// ExpressionTable holds one abundance column per sample
type ExpressionTable struct {
	ids     []TranscriptID
	samples []string
	values  [][]float64 // values[sample][row]
}

// NewExpressionTable validates and wraps the sample columns. Abundances must be
// finite and non-negative.
func NewExpressionTable(ids []TranscriptID, samples []string, values [][]float64) (*ExpressionTable, error) {
	if len(samples) == 0 {
		return nil, &InvalidExpressionError{Sample: NameColumn, Value: "no samples"}
	}
	if len(values) != len(samples) {
		return nil, fmt.Errorf("got %d columns for %d samples", len(values), len(samples))
	}
	seen := map[string]bool{}
	for i, sample := range samples {
		if sample == "" || sample == NameColumn {
			return nil, &InvalidExpressionError{Sample: sample, Value: "reserved sample name"}
		}
		if seen[sample] {
			return nil, &InvalidExpressionError{Sample: sample, Value: "duplicate sample"}
		}
		seen[sample] = true
		if len(values[i]) != len(ids) {
			return nil, fmt.Errorf("sample `%s` has %d values for %d ids", sample, len(values[i]), len(ids))
		}
		for j, x := range values[i] {
			if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
				return nil, &InvalidExpressionError{Sample: sample, ID: ids[j],
					Value: strconv.FormatFloat(x, 'g', -1, 64)}
			}
		}
	}
	if err := checkUniqueIDs(ids, NameColumn); err != nil {
		return nil, err
	}
	return &ExpressionTable{ids: ids, samples: samples, values: values}, nil
}

// Len returns the number of transcripts
func (r *ExpressionTable) Len() int { return len(r.ids) }

// IDs returns the row keys in file order
func (r *ExpressionTable) IDs() []TranscriptID { return r.ids }

// Samples returns the sample names in file order
func (r *ExpressionTable) Samples() []string { return r.samples }

// Column returns the abundances of a sample
func (r *ExpressionTable) Column(sample string) ([]float64, bool) {
	for i, s := range r.samples {
		if s == sample {
			return r.values[i], true
		}
	}
	return nil, false
}

// ReadExpressionTable parses a (gzipped) abundance table
func ReadExpressionTable(filename string) (*ExpressionTable, error) {
	log.Noticef("Parse expression file `%s`", filename)
	fh, err := xopen.Ropen(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open `%s`", filename)
	}
	defer fh.Close()
	t, err := ParseExpressionTable(fh)
	if err != nil {
		return nil, errors.Wrapf(err, "expression file `%s`", filename)
	}
	log.Noticef("Imported %d transcripts in %d samples", t.Len(), len(t.samples))
	return t, nil
}

// ParseExpressionTable reads an abundance table keyed by `Name`. The delimiter
// is sniffed so that comma-separated exports are accepted too.
func ParseExpressionTable(r io.Reader) (*ExpressionTable, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = determineDelimiter(data)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, &InvalidExpressionError{Sample: NameColumn, Value: "empty table"}
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(header[0]) != NameColumn {
		return nil, &InvalidExpressionError{Sample: header[0], Value: "first column must be `Name`"}
	}
	samples := make([]string, len(header)-1)
	for i, name := range header[1:] {
		samples[i] = strings.TrimSpace(name)
	}

	var ids []TranscriptID
	values := make([][]float64, len(samples))
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		id := TranscriptID(strings.TrimSpace(rec[0]))
		if len(rec) < len(header) {
			return nil, &InvalidExpressionError{Sample: samples[len(rec)-1], ID: id,
				Value: "missing field"}
		}
		if len(rec) > len(header) {
			return nil, &InvalidExpressionError{Sample: NameColumn, ID: id,
				Value: fmt.Sprintf("%d fields for %d columns", len(rec), len(header))}
		}
		for i, field := range rec[1:] {
			x, ok := parseNumber(field)
			if !ok {
				return nil, &InvalidExpressionError{Sample: samples[i], ID: id, Value: field}
			}
			values[i] = append(values[i], x)
		}
		ids = append(ids, id)
	}
	return NewExpressionTable(ids, samples, values)
}

// WriteExpressionTable writes the abundance table with a `Name` key column
func WriteExpressionTable(w io.Writer, t *ExpressionTable) error {
	tw := tsv.NewWriter(w)
	tw.WriteString(NameColumn)
	for _, sample := range t.samples {
		tw.WriteString(sample)
	}
	if err := tw.EndLine(); err != nil {
		return err
	}
	for j, id := range t.ids {
		tw.WriteString(string(id))
		for i := range t.samples {
			tw.WriteString(strconv.FormatFloat(t.values[i][j], 'g', -1, 64))
		}
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// determineDelimiter returns the most likely field separator, assuming a
// CSV-like file. Tab wins when nothing sensible is found.
func determineDelimiter(data []byte) rune {
	d := detector.New()
	for _, delim := range d.DetectDelimiter(bytes.NewReader(data), '"') {
		switch delim {
		case "\t", ",", ";":
			return rune(delim[0])
		}
	}
	return '\t'
}
