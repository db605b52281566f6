// Package export renders document snapshots to files.
package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"EmojiArt/internal/document"
	"EmojiArt/internal/state"
)

// Options controls the PDF page. Zero values use A4 landscape with 10mm margins.
type Options struct {
	PageSize    string // gofpdf size name: A4, Letter, ...
	Orientation string // P or L
	Margin      float64
	Title       string
}

func (o *Options) defaults() {
	if o.PageSize == "" {
		o.PageSize = "A4"
	}
	if o.Orientation == "" {
		o.Orientation = "L"
	}
	if o.Margin <= 0 {
		o.Margin = 10
	}
	if o.Title == "" {
		o.Title = "EmojiArt"
	}
}

// ExportPDF writes snap to a PDF file at path.
func ExportPDF(path string, snap document.Snapshot, opts Options) error {
	pdf, err := render(snap, opts)
	if err != nil {
		return err
	}
	return pdf.OutputFileAndClose(path)
}

// ExportDocument renders the document file at docPath to a PDF at pdfPath
// without a window. A URL background is fetched with loader first; if that
// fetch fails the PDF is written without the background.
func ExportDocument(docPath, pdfPath string, loader document.Loader, opts Options, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := document.Open(docPath)
	if err != nil {
		return err
	}
	ctrl := document.New(m, document.Options{Loader: loader, Logger: logger})
	defer ctrl.Close()
	ctrl.Wait()

	snap := ctrl.Snapshot()
	if snap.Status.State == document.Failed {
		logger.Warn("exporting without background", "url", snap.Status.URL)
	}
	if opts.Title == "" {
		opts.Title = strings.TrimSuffix(filepath.Base(docPath), state.FileExtension)
	}
	if err := ExportPDF(pdfPath, snap, opts); err != nil {
		return fmt.Errorf("export %s: %w", pdfPath, err)
	}
	logger.Info("exported", "document", docPath, "pdf", pdfPath, "emojis", m.Len())
	return nil
}

// WritePDF writes snap as a PDF document to w.
func WritePDF(w io.Writer, snap document.Snapshot, opts Options) error {
	pdf, err := render(snap, opts)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

func render(snap document.Snapshot, opts Options) (*gofpdf.Fpdf, error) {
	opts.defaults()
	pdf := gofpdf.New(opts.Orientation, "mm", opts.PageSize, "")
	pdf.SetTitle(opts.Title, true)
	pdf.SetCreator("EmojiArt", true)
	pdf.AddPage()

	pw, ph := pdf.GetPageSize()
	l := fit(bounds(snap.Model.Emojis(), snap.Image), pw, ph, opts.Margin)

	if snap.Image != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, snap.Image); err != nil {
			return nil, fmt.Errorf("encode background: %w", err)
		}
		imgOpts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("background", imgOpts, &buf)
		b := snap.Image.Bounds()
		x, y := l.point(-float64(b.Dx())/2, -float64(b.Dy())/2)
		pdf.ImageOptions("background", x, y, float64(b.Dx())*l.scale, float64(b.Dy())*l.scale, false, imgOpts, 0, "")
	}

	pdf.SetDrawColor(90, 90, 90)
	pdf.SetTextColor(30, 30, 30)
	pdf.SetLineWidth(0.2)
	pdf.SetFont("Helvetica", "", 8)
	for _, e := range snap.Model.Emojis() {
		drawEmoji(pdf, l, e)
	}
	return pdf, pdf.Error()
}

// The core PDF fonts have no emoji glyphs, so each emoji is drawn as a box
// of its size labelled with its code points.
func drawEmoji(pdf *gofpdf.Fpdf, l layout, e state.Emoji) {
	side := float64(e.Size) * l.scale
	x, y := l.point(float64(e.X)-float64(e.Size)/2, float64(e.Y)-float64(e.Size)/2)
	pdf.Rect(x, y, side, side, "D")

	label := codePoints(e.Text)
	fontMM := side / 4
	pdf.SetFontSize(fontMM * 72 / 25.4)
	if w := pdf.GetStringWidth(label); w > side*0.9 {
		fontMM *= side * 0.9 / w
		pdf.SetFontSize(fontMM * 72 / 25.4)
	}
	w := pdf.GetStringWidth(label)
	pdf.Text(x+(side-w)/2, y+side/2+fontMM/3, label)
}

func codePoints(s string) string {
	parts := make([]string, 0, len(s))
	for _, r := range s {
		parts = append(parts, fmt.Sprintf("%U", r))
	}
	return strings.Join(parts, " ")
}

// box is a rectangle in document coordinates, which are centred on the
// middle of the background.
type box struct{ minX, minY, maxX, maxY float64 }

func bounds(emojis []state.Emoji, bg image.Image) box {
	b := box{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	grow := func(cx, cy, w, h float64) {
		b.minX = math.Min(b.minX, cx-w/2)
		b.minY = math.Min(b.minY, cy-h/2)
		b.maxX = math.Max(b.maxX, cx+w/2)
		b.maxY = math.Max(b.maxY, cy+h/2)
	}
	if bg != nil {
		r := bg.Bounds()
		grow(0, 0, float64(r.Dx()), float64(r.Dy()))
	}
	for _, e := range emojis {
		grow(float64(e.X), float64(e.Y), float64(e.Size), float64(e.Size))
	}
	if b.minX > b.maxX {
		return box{-50, -50, 50, 50}
	}
	return b
}

// layout maps document coordinates onto the page.
type layout struct {
	scale      float64
	offX, offY float64
}

func (l layout) point(x, y float64) (float64, float64) {
	return l.offX + x*l.scale, l.offY + y*l.scale
}

func fit(b box, pw, ph, margin float64) layout {
	aw, ah := pw-2*margin, ph-2*margin
	bw, bh := math.Max(b.maxX-b.minX, 1), math.Max(b.maxY-b.minY, 1)
	scale := math.Min(aw/bw, ah/bh)
	return layout{
		scale: scale,
		offX:  margin + (aw-bw*scale)/2 - b.minX*scale,
		offY:  margin + (ah-bh*scale)/2 - b.minY*scale,
	}
}
