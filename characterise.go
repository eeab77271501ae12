/**
 * Filename: /Users/bao/code/rnaseqqc/characterise.go
 * Path: /Users/bao/code/rnaseqqc
 * Created Date: Wednesday, March 7th 2018, 1:56:45 pm
 * Author: bao
 *
 * Copyright (c) 2018 Haibao Tang
 */

package rnaseqqc

import (
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

// Characteriser computes the sequence composition of every transcript
// (characteriseTranscripts)
type Characteriser struct {
	Fastafile string
	// Output file
	OutAttributesfile string
}

// Composition stores the base and dinucleotide counts of one sequence
type Composition struct {
	ID            TranscriptID
	Length        int
	Bases         map[byte]int // A, C, G, T and N
	Unknown       int          // bases outside ACGTN
	Dinucleotides map[string]int
	OtherPairs    int // dinucleotides with a base outside ACGT
}

// compositionHeader lists the columns written by characterise
func compositionHeader() []string {
	header := []string{IDColumn, LengthColumn, "ncodons", "nGC", "nAT",
		"nA", "nC", "nG", "nT", "nN", "nUnk", "mCountsOthers",
		"pGC", "pAT", "pA", "pC", "pG", "pT", "pN"}
	return append(header, Dinucleotides()...)
}

// Characterise counts bases and overlapping dinucleotides, case-insensitive
func Characterise(id TranscriptID, s []byte) *Composition {
	c := &Composition{
		ID:            id,
		Length:        len(s),
		Bases:         map[byte]int{'A': 0, 'C': 0, 'G': 0, 'T': 0, 'N': 0},
		Dinucleotides: map[string]int{},
	}
	for _, di := range Dinucleotides() {
		c.Dinucleotides[di] = 0
	}
	up := []byte(strings.ToUpper(string(s)))
	for i, b := range up {
		if _, ok := c.Bases[b]; ok {
			c.Bases[b]++
		} else {
			c.Unknown++
		}
		if i == 0 {
			continue
		}
		pair := string(up[i-1 : i+1])
		if _, ok := c.Dinucleotides[pair]; ok {
			c.Dinucleotides[pair]++
		} else {
			c.OtherPairs++
		}
	}
	return c
}

// fraction guards against empty sequences
func (r *Composition) fraction(n int) float64 {
	if r.Length == 0 {
		return 0
	}
	return float64(n) / float64(r.Length)
}

// fields renders the composition in compositionHeader order
func (r *Composition) fields() []string {
	itoa := strconv.Itoa
	ftoa := func(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }
	nGC := r.Bases['G'] + r.Bases['C']
	nAT := r.Bases['A'] + r.Bases['T']
	fields := []string{string(r.ID), itoa(r.Length), itoa(r.Length / 3), itoa(nGC), itoa(nAT),
		itoa(r.Bases['A']), itoa(r.Bases['C']), itoa(r.Bases['G']), itoa(r.Bases['T']),
		itoa(r.Bases['N']), itoa(r.Unknown), itoa(r.OtherPairs),
		ftoa(r.fraction(nGC)), ftoa(r.fraction(nAT)),
		ftoa(r.fraction(r.Bases['A'])), ftoa(r.fraction(r.Bases['C'])),
		ftoa(r.fraction(r.Bases['G'])), ftoa(r.fraction(r.Bases['T'])),
		ftoa(r.fraction(r.Bases['N']))}
	for _, di := range Dinucleotides() {
		fields = append(fields, itoa(r.Dinucleotides[di]))
	}
	return fields
}

// Run reads the transcripts and writes the attribute table
func (r *Characteriser) Run() error {
	if err := mustExist(r.Fastafile); err != nil {
		return err
	}
	if r.OutAttributesfile == "" {
		r.OutAttributesfile = AttributesFile
	}
	log.Noticef("Parse FASTA file `%s`", r.Fastafile)
	reader, err := fastx.NewDefaultReader(r.Fastafile)
	if err != nil {
		return errors.Wrapf(err, "cannot open `%s`", r.Fastafile)
	}
	defer reader.Close()
	seq.ValidateSeq = false // This flag makes parsing FASTA much faster

	ntranscripts := 0
	totalBp := int64(0)
	err = writeFile(r.OutAttributesfile, func(w io.Writer) error {
		tw := tsv.NewWriter(w)
		for _, col := range compositionHeader() {
			tw.WriteString(col)
		}
		if err := tw.EndLine(); err != nil {
			return err
		}
		for {
			rec, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			// Strip the sequence name to get the first part up to empty space
			words := strings.Fields(string(rec.Name))
			if len(words) == 0 {
				return errors.Errorf("record %d has no name", ntranscripts+1)
			}
			c := Characterise(TranscriptID(words[0]), rec.Seq.Seq)
			for _, field := range c.fields() {
				tw.WriteString(field)
			}
			if err := tw.EndLine(); err != nil {
				return err
			}
			ntranscripts++
			totalBp += int64(c.Length)
		}
		return tw.Flush()
	})
	if err != nil {
		return err
	}
	log.Noticef("Composition of %d transcripts (%d bp) written to `%s`",
		ntranscripts, totalBp, r.OutAttributesfile)
	return nil
}
