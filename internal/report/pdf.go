package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// pdfCanvas draws on an fpdf document. fpdf measures y from the top edge,
// so coordinates are flipped against the page height.
type pdfCanvas struct {
	pdf       *fpdf.Fpdf
	height    float64
	translate func(string) string
	font      Font
	onPage    bool
}

func (c *pdfCanvas) SetFont(f Font) {
	c.font = f
	if c.onPage {
		c.pdf.SetFont(f.Family, f.Style, f.Size)
	}
}

func (c *pdfCanvas) DrawText(x, y float64, text string) {
	if !c.onPage {
		c.pdf.AddPage()
		c.pdf.SetFont(c.font.Family, c.font.Style, c.font.Size)
		c.onPage = true
	}
	c.pdf.Text(x, c.height-y, c.translate(text))
}

func (c *pdfCanvas) ShowPage() {
	if !c.onPage {
		c.pdf.AddPage()
	}
	c.onPage = false
}

// WritePDF encodes d as PDF to w. Output is byte-for-byte reproducible for
// the same Document: the creation and modification dates come from the
// document and catalog entries are emitted in sorted order.
func WritePDF(w io.Writer, d *Document) error {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: d.PageWidth, Ht: d.PageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(d.CreatedAt)
	pdf.SetModificationDate(d.CreatedAt)
	pdf.SetTitle(d.Title, true)
	pdf.SetCreator("chemflux", false)

	d.Draw(&pdfCanvas{
		pdf:       pdf,
		height:    d.PageHeight,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
	})

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("encode pdf: %w", err)
	}
	return nil
}

// RenderPDF lays out in and returns the encoded PDF with its page count.
func (r *Renderer) RenderPDF(in Input) ([]byte, int, error) {
	doc, err := r.Render(in)
	if err != nil {
		return nil, 0, err
	}
	var buf bytes.Buffer
	if err := WritePDF(&buf, doc); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), len(doc.Pages), nil
}
