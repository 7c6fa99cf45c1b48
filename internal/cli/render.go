package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JonMunkholm/chemflux/internal/core"
	"github.com/JonMunkholm/chemflux/internal/report"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkFormat(format string) error {
	switch format {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("unknown format %q (want table or json)", format)
	}
}

func renderSummary(w io.Writer, s *core.Summary, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	if format == "json" {
		return renderJSON(w, s)
	}

	_, _ = fmt.Fprintf(w, "Total Count: %d\n", s.TotalCount)
	_, _ = fmt.Fprintf(w, "Columns: %s\n\n", strings.Join(s.Columns, ", "))

	if s.Averages.Len() == 0 {
		_, _ = fmt.Fprintln(w, "Averages: (no numeric columns)")
	} else {
		t := newTable(w, "Averages")
		t.AppendHeader(table.Row{"Column", "Average"})
		for _, p := range s.Averages.Pairs() {
			t.AppendRow(table.Row{p.Key, strconv.FormatFloat(p.Value, 'f', -1, 64)})
		}
		t.Render()
	}
	_, _ = fmt.Fprintln(w)

	if s.TypeDistribution.Len() == 0 {
		_, _ = fmt.Fprintln(w, "Type Distribution: (no type column)")
	} else {
		t := newTable(w, "Type Distribution")
		t.AppendHeader(table.Row{"Type", "Count"})
		for _, p := range s.TypeDistribution.Pairs() {
			t.AppendRow(table.Row{p.Key, p.Value})
		}
		t.Render()
	}

	if len(s.Preview) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(w)
	t := newTable(w, fmt.Sprintf("Preview (%d rows)", len(s.Preview)))
	header := make(table.Row, len(s.Columns))
	for i, c := range s.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, rec := range s.Preview {
		row := make(table.Row, len(s.Columns))
		for i, c := range s.Columns {
			if v, ok := rec.Get(c); ok {
				row[i] = v
			}
		}
		t.AppendRow(row)
	}
	t.Render()
	return nil
}

func renderHistory(w io.Writer, datasets []core.Dataset, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	if format == "json" {
		if datasets == nil {
			datasets = []core.Dataset{}
		}
		return renderJSON(w, datasets)
	}

	if len(datasets) == 0 {
		_, _ = fmt.Fprintln(w, "(no datasets)")
		return nil
	}

	t := newTable(w, "")
	t.AppendHeader(table.Row{"ID", "Name", "Uploaded At", "Rows", "Columns"})
	for _, d := range datasets {
		t.AppendRow(table.Row{
			d.ID,
			d.Name,
			d.UploadedAt.UTC().Format(report.TimestampLayout),
			d.Summary.TotalCount,
			len(d.Summary.Columns),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(datasets)})
	t.Render()
	return nil
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
