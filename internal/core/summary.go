package core

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// MissingLabel is the distribution label for rows with no categorical value.
const MissingLabel = "null"

// DefaultPreviewRows is how many leading rows a Summary previews.
const DefaultPreviewRows = 10

// DefaultCategoryColumns are the candidate categorical column names, in
// priority order.
var DefaultCategoryColumns = []string{"Type", "type", "Equipment Type", "equipment_type"}

// numericRegex matches a decimal or scientific-notation number.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// NumericPolicy decides how blank cells affect numeric column detection.
type NumericPolicy int

const (
	// NumericIgnoreBlanks skips blank or missing cells; the remaining cells
	// must all be numeric and at least one must exist.
	NumericIgnoreBlanks NumericPolicy = iota

	// NumericStrict requires a numeric cell in every row.
	NumericStrict
)

func (p NumericPolicy) String() string {
	switch p {
	case NumericStrict:
		return "strict"
	case NumericIgnoreBlanks:
		return "ignore-blanks"
	default:
		return fmt.Sprintf("NumericPolicy(%d)", int(p))
	}
}

// ParseNumericPolicy parses "strict" or "ignore-blanks".
func ParseNumericPolicy(s string) (NumericPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ignore-blanks", "ignore_blanks":
		return NumericIgnoreBlanks, nil
	case "strict":
		return NumericStrict, nil
	default:
		return 0, fmt.Errorf("unknown numeric policy %q (want strict or ignore-blanks)", s)
	}
}

// Summary is the derived, JSON-serializable description of an upload.
// Field order and the member order of each map are part of the wire format.
type Summary struct {
	TotalCount       int                  `json:"total_count"`
	Averages         OrderedMap[float64]  `json:"averages"`
	TypeDistribution OrderedMap[int]      `json:"type_distribution"`
	Columns          []string             `json:"columns"`
	Preview          []OrderedMap[string] `json:"preview"`
}

// SummaryOptions configures a SummaryBuilder.
type SummaryOptions struct {
	CategoryColumns []string
	NumericPolicy   NumericPolicy
	PreviewRows     int
}

// DefaultSummaryOptions returns the stock candidate list, the ignore-blanks
// policy and a ten row preview.
func DefaultSummaryOptions() SummaryOptions {
	return SummaryOptions{
		CategoryColumns: slices.Clone(DefaultCategoryColumns),
		NumericPolicy:   NumericIgnoreBlanks,
		PreviewRows:     DefaultPreviewRows,
	}
}

// SummaryBuilder derives a Summary from a Table. It holds no mutable state
// and is safe for concurrent use.
type SummaryBuilder struct {
	categories []string
	policy     NumericPolicy
	preview    int
}

// NewSummaryBuilder creates a builder. An empty candidate list falls back to
// DefaultCategoryColumns; a non-positive preview size to DefaultPreviewRows.
func NewSummaryBuilder(opts SummaryOptions) *SummaryBuilder {
	b := &SummaryBuilder{
		categories: slices.Clone(opts.CategoryColumns),
		policy:     opts.NumericPolicy,
		preview:    opts.PreviewRows,
	}
	if len(b.categories) == 0 {
		b.categories = slices.Clone(DefaultCategoryColumns)
	}
	if b.preview <= 0 {
		b.preview = DefaultPreviewRows
	}
	return b
}

// Build computes the Summary for t. It fails with ErrEmptyTable when t has
// no columns.
func (b *SummaryBuilder) Build(t *Table) (*Summary, error) {
	if t == nil || len(t.Columns) == 0 {
		return nil, ErrEmptyTable
	}

	first := firstOccurrence(t.Columns)
	s := &Summary{
		TotalCount: len(t.Rows),
		Columns:    slices.Clone(t.Columns),
		Preview:    make([]OrderedMap[string], 0, min(b.preview, len(t.Rows))),
	}

	for i, name := range t.Columns {
		if first[name] != i {
			continue
		}
		if mean, ok := b.columnMean(t.Rows, i); ok {
			s.Averages.Set(name, round2(mean))
		}
	}

	if col, ok := b.categoryColumn(first); ok {
		for _, row := range t.Rows {
			label, ok := row.Cell(col)
			if !ok || isBlank(label) {
				label = MissingLabel
			}
			n, _ := s.TypeDistribution.Get(label)
			s.TypeDistribution.Set(label, n+1)
		}
	}

	for _, row := range t.Rows[:min(b.preview, len(t.Rows))] {
		var rec OrderedMap[string]
		for i, name := range t.Columns {
			if first[name] != i {
				continue
			}
			if v, ok := row.Cell(i); ok {
				rec.Set(name, v)
			}
		}
		s.Preview = append(s.Preview, rec)
	}

	return s, nil
}

// columnMean returns the arithmetic mean of column i if the column is
// numeric under the builder's policy.
func (b *SummaryBuilder) columnMean(rows []Row, i int) (float64, bool) {
	var sum float64
	n := 0
	for _, row := range rows {
		v, ok := row.Cell(i)
		if !ok || isBlank(v) {
			if b.policy == NumericStrict {
				return 0, false
			}
			continue
		}
		x, ok := parseNumber(v)
		if !ok {
			return 0, false
		}
		sum += x
		n++
	}
	if n == 0 {
		return 0, false
	}
	mean := sum / float64(n)
	// JSON has no encoding for these
	if math.IsInf(mean, 0) || math.IsNaN(mean) {
		return 0, false
	}
	return mean, true
}

// categoryColumn picks the first candidate present among the columns.
func (b *SummaryBuilder) categoryColumn(first map[string]int) (int, bool) {
	for _, name := range b.categories {
		if i, ok := first[name]; ok {
			return i, true
		}
	}
	return 0, false
}

// firstOccurrence maps each column name to the index of its first appearance.
func firstOccurrence(cols []string) map[string]int {
	m := make(map[string]int, len(cols))
	for i, name := range cols {
		if _, ok := m[name]; !ok {
			m[name] = i
		}
	}
	return m
}

// missingTokens are the cell texts read as missing values, the same set
// pandas.read_csv treats as NA by default. Matching is case-sensitive.
var missingTokens = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {},
	"N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {},
	"nan": {}, "null": {},
}

// isBlank reports whether s is empty, whitespace or a missing-value token.
func isBlank(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	_, ok := missingTokens[s]
	return ok
}

// parseNumber parses s as a number if it matches numericRegex and is finite.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// round2 rounds to two decimal places, halves away from zero. Magnitudes
// of 1e15 and up have no fractional cents to round and are returned as is.
func round2(x float64) float64 {
	if math.Abs(x) >= 1e15 {
		return x
	}
	return math.Round(x*100) / 100
}
