package report

import (
	"fmt"

	"github.com/JonMunkholm/chemflux/internal/core"
)

// A4 page size in points.
const (
	A4Width  = 595.2755905511812
	A4Height = 841.8897637795277
)

// Font selects a typeface. Style is "" for regular or "B" for bold.
type Font struct {
	Family string
	Style  string
	Size   float64
}

// Layout fixes page geometry, fonts and the vertical advance after each kind
// of line. Y coordinates are measured from the bottom edge of the page.
type Layout struct {
	PageWidth  float64
	PageHeight float64

	Left   float64 // x of headings and body lines
	Indent float64 // x of list items
	Top    float64 // distance from the top edge to the first baseline
	Bottom float64 // a page is full once the cursor drops below this

	TitleHeight   float64
	MetaHeight    float64 // after "Dataset:"
	MetaGap       float64 // after "Uploaded At:"
	SectionHeight float64
	BodyHeight    float64
	ItemHeight    float64

	TitleFont   Font
	SectionFont Font
	BodyFont    Font
}

// DefaultLayout is an A4 portrait page with Helvetica text.
func DefaultLayout() Layout {
	return Layout{
		PageWidth:  A4Width,
		PageHeight: A4Height,

		Left:   50,
		Indent: 70,
		Top:    50,
		Bottom: 80,

		TitleHeight:   25,
		MetaHeight:    15,
		MetaGap:       25,
		SectionHeight: 18,
		BodyHeight:    15,
		ItemHeight:    14,

		TitleFont:   Font{Family: "Helvetica", Style: "B", Size: 16},
		SectionFont: Font{Family: "Helvetica", Style: "B", Size: 12},
		BodyFont:    Font{Family: "Helvetica", Size: 10},
	}
}

// topY is where the cursor starts on every page.
func (l Layout) topY() float64 { return l.PageHeight - l.Top }

// Validate rejects layouts that cannot place a line on a page.
func (l Layout) Validate() error {
	if l.PageWidth <= 0 || l.PageHeight <= 0 {
		return &core.RenderError{Reason: fmt.Sprintf("page size %gx%g", l.PageWidth, l.PageHeight)}
	}
	if l.Top < 0 || l.Bottom < 0 {
		return &core.RenderError{Reason: "negative margin"}
	}
	if l.topY() <= l.Bottom {
		return &core.RenderError{Reason: fmt.Sprintf(
			"top margin %g leaves no room above bottom threshold %g on a %g high page",
			l.Top, l.Bottom, l.PageHeight)}
	}
	if l.Left < 0 || l.Left >= l.PageWidth || l.Indent < 0 || l.Indent >= l.PageWidth {
		return &core.RenderError{Reason: "text origin outside page width"}
	}

	heights := []struct {
		name string
		v    float64
	}{
		{"title", l.TitleHeight},
		{"meta", l.MetaHeight},
		{"meta gap", l.MetaGap},
		{"section", l.SectionHeight},
		{"body", l.BodyHeight},
		{"item", l.ItemHeight},
	}
	for _, h := range heights {
		if h.v <= 0 {
			return &core.RenderError{Reason: fmt.Sprintf("%s line height %g", h.name, h.v)}
		}
	}

	for _, f := range []Font{l.TitleFont, l.SectionFont, l.BodyFont} {
		if f.Family == "" || f.Size <= 0 {
			return &core.RenderError{Reason: fmt.Sprintf("font %q size %g", f.Family, f.Size)}
		}
	}
	return nil
}
