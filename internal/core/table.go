package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is a parsed CSV upload: trimmed header names plus positional rows.
type Table struct {
	Columns []string
	Rows    []Row
}

// Row holds one record's cells in column order. A row may be shorter than
// the header; trailing columns are then absent, not empty.
type Row []string

// Cell returns the value at column i and whether the row has that cell.
func (r Row) Cell(i int) (string, bool) {
	if i < 0 || i >= len(r) {
		return "", false
	}
	return r[i], true
}

// ParseTable tokenizes comma-delimited, double-quote-escaped text with a
// header row. Header names are trimmed; duplicates and empty names are kept.
// Blank lines are skipped. Input with no header yields a zero-column table.
//
// A record with more fields than the header, or text that cannot be
// tokenized, fails with *MalformedInputError.
func ParseTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(newCleanReader(r))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Table{Columns: []string{}, Rows: []Row{}}, nil
	}
	if err != nil {
		return nil, newMalformedInputError(err)
	}

	t := &Table{
		Columns: make([]string, len(header)),
		Rows:    []Row{},
	}
	for i, name := range header {
		t.Columns[i] = strings.TrimSpace(name)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, newMalformedInputError(err)
		}
		if len(rec) > len(t.Columns) {
			line, _ := cr.FieldPos(0)
			return nil, &MalformedInputError{
				Line: line,
				Err:  fmt.Errorf("expected at most %d fields, saw %d", len(t.Columns), len(rec)),
			}
		}
		t.Rows = append(t.Rows, Row(rec))
	}

	return t, nil
}
