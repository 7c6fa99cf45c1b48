package report

// Canvas is a drawing surface with bottom-left origin coordinates.
// ShowPage ends the current page; the next DrawText starts a new one.
type Canvas interface {
	SetFont(f Font)
	DrawText(x, y float64, text string)
	ShowPage()
}

// Draw replays the document onto c, one ShowPage per page.
func (d *Document) Draw(c Canvas) {
	for _, page := range d.Pages {
		var current Font
		for i, line := range page.Lines {
			if i == 0 || line.Font != current {
				c.SetFont(line.Font)
				current = line.Font
			}
			c.DrawText(line.X, line.Y, line.Text)
		}
		c.ShowPage()
	}
}

// Recorder is a Canvas that keeps what was drawn, page by page.
type Recorder struct {
	Pages [][]Line
	font  Font
	open  []Line
}

func (r *Recorder) SetFont(f Font) { r.font = f }

func (r *Recorder) DrawText(x, y float64, text string) {
	r.open = append(r.open, Line{Text: text, X: x, Y: y, Font: r.font})
}

func (r *Recorder) ShowPage() {
	r.Pages = append(r.Pages, r.open)
	r.open = nil
}
