package report

// Line is one string drawn at a fixed position.
type Line struct {
	Text string
	X    float64
	Y    float64
	Font Font
}

// Page is the lines placed on one page, in drawing order.
type Page struct {
	Number int
	Lines  []Line
}

type pageState int

const (
	// accumulating: the cursor is at or above the bottom threshold.
	accumulating pageState = iota
	// pageFull: the last line pushed the cursor below the threshold; the
	// next line starts a new page.
	pageFull
)

func (s pageState) String() string {
	if s == pageFull {
		return "PageFull"
	}
	return "Accumulating"
}

// paginator places lines top to bottom and breaks pages lazily: a full page
// is closed only when another line arrives, so a document never ends with a
// blank page. The flush in finish takes the place of an unconditional final
// page break.
type paginator struct {
	layout  Layout
	state   pageState
	cursor  float64
	current []Line
	pages   []Page
}

func newPaginator(l Layout) *paginator {
	return &paginator{layout: l, cursor: l.topY()}
}

// emit draws text at the cursor and moves the cursor down by advance.
func (p *paginator) emit(text string, x float64, font Font, advance float64) {
	if p.state == pageFull {
		p.closePage()
	}
	p.current = append(p.current, Line{Text: text, X: x, Y: p.cursor, Font: font})
	p.cursor -= advance
	if p.cursor < p.layout.Bottom {
		p.state = pageFull
	}
}

func (p *paginator) closePage() {
	p.pages = append(p.pages, Page{Number: len(p.pages) + 1, Lines: p.current})
	p.current = nil
	p.cursor = p.layout.topY()
	p.state = accumulating
}

// finish flushes the last page and returns every page.
func (p *paginator) finish() []Page {
	if len(p.current) > 0 || len(p.pages) == 0 {
		p.closePage()
	}
	return p.pages
}
