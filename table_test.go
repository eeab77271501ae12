/*
 *  table_test.go
 *  rnaseqqc
 *
 *  Created by Haibao Tang on 10/16/26
 *  Copyright © 2026 Haibao Tang. All rights reserved.
 */

package rnaseqqc_test

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanghaibao/rnaseqqc"
)

// attributeTSV builds a characterise-like table: id, length, pGC, nA, the 16
// dinucleotide counts, with one line per row of values
func attributeTSV(rows ...[]string) string {
	header := append([]string{"id", "length", "pGC", "nA"}, rnaseqqc.Dinucleotides()...)
	lines := []string{strings.Join(header, "\t")}
	for _, row := range rows {
		lines = append(lines, strings.Join(row, "\t"))
	}
	return strings.Join(lines, "\n") + "\n"
}

// attributeRow fills all 16 dinucleotide counts with the same value
func attributeRow(id, length, pGC, di string) []string {
	row := []string{id, length, pGC, "3"}
	for range rnaseqqc.Dinucleotides() {
		row = append(row, di)
	}
	return row
}

func TestParseAttributeTable(t *testing.T) {
	data := attributeTSV(attributeRow("t1", "8", "0.5", "2"), attributeRow("t2", "16", "0.25", "4"))
	table, err := rnaseqqc.ParseAttributeTable(strings.NewReader(data))
	require.NoError(t, err)
	if table.Len() != 2 {
		t.Fatalf("Expected %d records, got %d records", 2, table.Len())
	}
	factors := table.Factors()
	assert.Equal(t, 18, len(factors))
	assert.Equal(t, "length", factors[0])
	assert.Equal(t, "GC_Content", factors[1])

	length, _ := table.Column("length")
	assert.Equal(t, []float64{3, 4}, length)
	gc, _ := table.Column("GC_Content")
	assert.Equal(t, []float64{0.5, 0.25}, gc)
	aa, _ := table.Column("AA")
	assert.Equal(t, []float64{0.25, 0.25}, aa)
	_, ok := table.Column("nA")
	assert.False(t, ok, "intermediate columns are dropped")
}

func TestParseAttributeTableMissingValue(t *testing.T) {
	row := attributeRow("t2", "16", "", "4")
	data := attributeTSV(attributeRow("t1", "8", "0.5", "2"), row)
	_, err := rnaseqqc.ParseAttributeTable(strings.NewReader(data))
	var target *rnaseqqc.InvalidAttributeError
	require.True(t, errors.As(err, &target), "got %v", err)
	assert.Equal(t, "GC_Content", target.Attribute)
	assert.Equal(t, rnaseqqc.TranscriptID("t2"), target.ID)

	data = attributeTSV(attributeRow("t1", "NA", "0.5", "2"))
	_, err = rnaseqqc.ParseAttributeTable(strings.NewReader(data))
	require.True(t, errors.As(err, &target), "got %v", err)
	assert.Equal(t, "length", target.Attribute)

	data = attributeTSV(attributeRow("t1", "0", "0.5", "2"))
	_, err = rnaseqqc.ParseAttributeTable(strings.NewReader(data))
	require.True(t, errors.As(err, &target), "got %v", err)
}

func TestParseAttributeTableSchema(t *testing.T) {
	var target *rnaseqqc.InvalidAttributeError

	unexpected := strings.Replace(attributeTSV(), "nA", "foo", 1)
	_, err := rnaseqqc.ParseAttributeTable(strings.NewReader(unexpected))
	require.True(t, errors.As(err, &target), "got %v", err)
	assert.Equal(t, "foo", target.Attribute)

	missing := strings.Replace(attributeTSV(), "\tpGC", "", 1)
	_, err = rnaseqqc.ParseAttributeTable(strings.NewReader(missing))
	require.True(t, errors.As(err, &target), "got %v", err)
	assert.Equal(t, "pGC", target.Attribute)

	_, err = rnaseqqc.NewAttributeTable([]rnaseqqc.TranscriptID{"a", "a"},
		[]string{"length"}, [][]float64{{1, 2}})
	require.True(t, errors.As(err, &target), "got %v", err)

	_, err = rnaseqqc.NewAttributeTable([]rnaseqqc.TranscriptID{"a"},
		[]string{"length"}, [][]float64{{math.NaN()}})
	require.True(t, errors.As(err, &target), "got %v", err)
}

func TestParseExpressionTable(t *testing.T) {
	for _, data := range []string{
		"Name\tS1\tS2\ntx1\t1.5\t0\ntx2\t3\t2.25\n",
		"Name,S1,S2\ntx1,1.5,0\ntx2,3,2.25\n",
	} {
		table, err := rnaseqqc.ParseExpressionTable(strings.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, []string{"S1", "S2"}, table.Samples())
		assert.Equal(t, []rnaseqqc.TranscriptID{"tx1", "tx2"}, table.IDs())
		s2, _ := table.Column("S2")
		assert.Equal(t, []float64{0, 2.25}, s2)
	}

	_, err := rnaseqqc.ParseExpressionTable(strings.NewReader("Name\tS1\ntx1\t-1\n"))
	var target *rnaseqqc.InvalidExpressionError
	require.True(t, errors.As(err, &target), "got %v", err)
	assert.Equal(t, "S1", target.Sample)
}

func TestWriteExpressionTable(t *testing.T) {
	table, err := rnaseqqc.NewExpressionTable([]rnaseqqc.TranscriptID{"tx1", "tx2"},
		[]string{"S1"}, [][]float64{{1.5, 0}})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, rnaseqqc.WriteExpressionTable(&buf, table))
	assert.Equal(t, "Name\tS1\ntx1\t1.5\ntx2\t0\n", buf.String())
}

func TestParseTablesRaggedRows(t *testing.T) {
	short := attributeRow("t2", "16", "0.25", "4")
	data := attributeTSV(attributeRow("t1", "8", "0.5", "2"), short[:len(short)-1])
	_, err := rnaseqqc.ParseAttributeTable(strings.NewReader(data))
	var attrErr *rnaseqqc.InvalidAttributeError
	require.True(t, errors.As(err, &attrErr), "got %v", err)
	assert.Equal(t, "GG", attrErr.Attribute)
	assert.Equal(t, rnaseqqc.TranscriptID("t2"), attrErr.ID)

	data = attributeTSV(attributeRow("t1", "8", `0.5"`, "2"))
	_, err = rnaseqqc.ParseAttributeTable(strings.NewReader(data))
	require.True(t, errors.As(err, &attrErr), "got %v", err)
	assert.Equal(t, "GC_Content", attrErr.Attribute)

	var exprErr *rnaseqqc.InvalidExpressionError
	_, err = rnaseqqc.ParseExpressionTable(strings.NewReader("Name\tS1\tS2\ntx1\t1\t2\ntx2\t3\n"))
	require.True(t, errors.As(err, &exprErr), "got %v", err)
	assert.Equal(t, "S2", exprErr.Sample)
	assert.Equal(t, rnaseqqc.TranscriptID("tx2"), exprErr.ID)

	_, err = rnaseqqc.ParseExpressionTable(strings.NewReader("Name\tS1\ntx1\t1\"5\n"))
	require.True(t, errors.As(err, &exprErr), "got %v", err)
	assert.Equal(t, "S1", exprErr.Sample)
}
