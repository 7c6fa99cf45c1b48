package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/chemflux/internal/core"
)

// DefaultTitle heads every report unless configured otherwise.
const DefaultTitle = "ChemFlux Report"

// TimestampLayout formats the upload time on the report.
const TimestampLayout = "2006-01-02 15:04:05"

// Input is what a report is rendered from.
type Input struct {
	ID         int64
	Name       string
	UploadedAt time.Time
	Summary    core.Summary
}

// InputFromDataset adapts a stored dataset.
func InputFromDataset(d *core.Dataset) Input {
	return Input{ID: d.ID, Name: d.Name, UploadedAt: d.UploadedAt, Summary: d.Summary}
}

// Document is a laid-out report, ready to be drawn on a Canvas.
type Document struct {
	Title      string
	CreatedAt  time.Time
	PageWidth  float64
	PageHeight float64
	Pages      []Page
}

// Renderer lays out reports with a fixed Layout.
type Renderer struct {
	layout Layout
	title  string
}

// NewRenderer validates layout and returns a Renderer. An empty title uses
// DefaultTitle.
func NewRenderer(layout Layout, title string) (*Renderer, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return &Renderer{layout: layout, title: title}, nil
}

// Render lays out the report for in. The same input always yields the same
// Document.
func (r *Renderer) Render(in Input) (*Document, error) {
	l := r.layout
	p := newPaginator(l)

	p.emit(r.title, l.Left, l.TitleFont, l.TitleHeight)
	p.emit("Dataset: "+in.Name, l.Left, l.BodyFont, l.MetaHeight)
	p.emit("Uploaded At: "+in.UploadedAt.UTC().Format(TimestampLayout), l.Left, l.BodyFont, l.MetaGap)

	p.emit("Summary", l.Left, l.SectionFont, l.SectionHeight)
	p.emit(fmt.Sprintf("Total Count: %d", in.Summary.TotalCount), l.Left, l.BodyFont, l.BodyHeight)

	p.emit("Averages:", l.Left, l.BodyFont, l.BodyHeight)
	for _, a := range in.Summary.Averages.Pairs() {
		p.emit(fmt.Sprintf("- %s: %s", a.Key, formatAverage(a.Value)), l.Indent, l.BodyFont, l.ItemHeight)
	}

	p.emit("Type Distribution:", l.Left, l.BodyFont, l.BodyHeight)
	for _, d := range in.Summary.TypeDistribution.Pairs() {
		p.emit(fmt.Sprintf("- %s: %d", d.Key, d.Value), l.Indent, l.BodyFont, l.ItemHeight)
	}

	return &Document{
		Title:      r.title,
		CreatedAt:  in.UploadedAt.UTC(),
		PageWidth:  l.PageWidth,
		PageHeight: l.PageHeight,
		Pages:      p.finish(),
	}, nil
}

// Filename is the suggested download name for a dataset's report.
func Filename(id int64) string {
	return fmt.Sprintf("report_%d.pdf", id)
}

// formatAverage prints whole numbers with a trailing ".0" so 10 reads as a
// mean rather than a count.
func formatAverage(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
