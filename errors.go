/*
 *  errors.go
 *  rnaseqqc
 *
 *  Created by Haibao Tang on 10/16/26
 *  Copyright © 2026 Haibao Tang. All rights reserved.
 */

package rnaseqqc

import "fmt"

// InvalidAttributeError reports a missing or non-numeric attribute value
type InvalidAttributeError struct {
	Attribute string
	ID        TranscriptID
	Value     string
}

func (e *InvalidAttributeError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid attribute `%s`: %s", e.Attribute, e.Value)
	}
	return fmt.Sprintf("invalid value %q for attribute `%s` in row `%s`", e.Value, e.Attribute, e.ID)
}

// InvalidExpressionError reports a missing, non-numeric or negative abundance
type InvalidExpressionError struct {
	Sample string
	ID     TranscriptID
	Value  string
}

func (e *InvalidExpressionError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid sample `%s`: %s", e.Sample, e.Value)
	}
	return fmt.Sprintf("invalid abundance %q for sample `%s` in row `%s`", e.Value, e.Sample, e.ID)
}

// InsufficientDataError is returned when there are fewer rows than requested bins
type InsufficientDataError struct {
	Attribute string
	Rows      int
	Bins      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("attribute `%s`: %d rows cannot fill %d bins", e.Attribute, e.Rows, e.Bins)
}

// DegenerateBinError is returned when a binned column has no spread, so min-max
// normalization is undefined
type DegenerateBinError struct {
	Attribute string
	Sample    string
	Bin       int // index of the bin holding the collapsed value, -1 if none remain
	Reason    string
}

func (e *DegenerateBinError) Error() string {
	if e.Sample == "" {
		return fmt.Sprintf("attribute `%s`: degenerate bins at bin %d: %s", e.Attribute, e.Bin, e.Reason)
	}
	return fmt.Sprintf("attribute `%s`, sample `%s`: degenerate bins at bin %d: %s",
		e.Attribute, e.Sample, e.Bin, e.Reason)
}

// IdentifierMismatchError is returned when the join between attributes and
// abundances drops more rows than allowed
type IdentifierMismatchError struct {
	Matched         int
	AttributeRows   int
	ExpressionRows  int
	MaxDropFraction float64
}

func (e *IdentifierMismatchError) Error() string {
	return fmt.Sprintf("only %d ids shared by %d attribute rows and %d expression rows (max drop fraction %.2f)",
		e.Matched, e.AttributeRows, e.ExpressionRows, e.MaxDropFraction)
}
