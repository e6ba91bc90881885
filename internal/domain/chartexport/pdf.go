package chartexport

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/odonto/odonto/internal/domain/odontogram"
	"github.com/odonto/odonto/internal/platform/metrics"
)

var ErrTemplatesUnavailable = errors.New("chart templates unavailable")

// TemplateSource loads the raw SVG of a sheet.
type TemplateSource interface {
	Fetch(ctx context.Context, sheet Sheet) ([]byte, error)
}

// Builder assembles the printable PDF of a visit.
type Builder struct {
	src    TemplateSource
	scale  float64
	logger zerolog.Logger
}

func NewBuilder(src TemplateSource, scale float64, logger zerolog.Logger) *Builder {
	if scale <= 0 {
		scale = DefaultScale
	}
	return &Builder{
		src:    src,
		scale:  scale,
		logger: logger,
	}
}

// preparedSheet is a sheet image ready to be placed on a page.
type preparedSheet struct {
	layout SheetLayout
	png    []byte
	box    ViewBox
	err    error
}

const (
	pageMargin = 15.0
	fontFamily = "Helvetica"
	lineHeight = 6.0
)

// Build renders the front sheet, the back sheet and, when present, the
// diagnosis and treatment pages. Every sheet image is prepared before the
// first page is added.
func (b *Builder) Build(ctx context.Context, doc Document) ([]byte, error) {
	sheets := make([]preparedSheet, 0, len(Sheets))
	var failures []error
	for _, s := range Sheets {
		ps := b.prepare(ctx, s, doc)
		if ps.err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", s, ps.err))
			b.logger.Warn().Err(ps.err).Str("sheet", string(s)).Msg("sheet template unavailable, printing error page")
		}
		sheets = append(sheets, ps)
	}
	if len(failures) == len(sheets) {
		metrics.Exports.WithLabelValues("pdf", "templates_unavailable").Inc()
		return nil, fmt.Errorf("%w: %w", ErrTemplatesUnavailable, errors.Join(failures...))
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(b.text("Odontograma "+doc.Patient.Name), false)

	for i, ps := range sheets {
		if ps.err != nil {
			b.errorPage(pdf, ps.layout.Sheet)
			continue
		}
		b.sheetPage(pdf, fmt.Sprintf("sheet-%d", i), ps, doc)
	}
	b.notesPage(pdf, doc)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		metrics.Exports.WithLabelValues("pdf", "error").Inc()
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	metrics.Exports.WithLabelValues("pdf", "ok").Inc()
	return buf.Bytes(), nil
}

// visitMarks draws the historical chart in blue first and the current chart
// in red over it. Both layers keep every mark of a tooth.
func visitMarks(v VisitInfo, table *AnchorTable) ([]Primitive, []SkippedTooth) {
	hist, skippedHist := ChartMarks(v.Historical, odontogram.ColorBlue, table)
	curr, skippedCurr := ChartMarks(v.Current, odontogram.ColorRed, table)
	return append(hist, curr...), append(skippedHist, skippedCurr...)
}

func (b *Builder) prepare(ctx context.Context, s Sheet, doc Document) preparedSheet {
	layout, ok := LayoutFor(s)
	if !ok {
		return preparedSheet{layout: SheetLayout{Sheet: s}, err: fmt.Errorf("unknown sheet %q", s)}
	}
	ps := preparedSheet{layout: layout}

	tpl, err := b.src.Fetch(ctx, s)
	if err != nil {
		ps.err = fmt.Errorf("fetch template: %w", err)
		return ps
	}

	var prims []Primitive
	if layout.Anchors != nil {
		var skipped []SkippedTooth
		prims, skipped = visitMarks(doc.Visit, layout.Anchors)
		for _, sk := range skipped {
			metrics.SkippedTeeth.Inc()
			b.logger.Warn().Err(sk.Err).Int("tooth", int(sk.Tooth)).Str("sheet", string(s)).Msg("tooth marks skipped")
		}
	}

	annotated, err := Annotate(tpl, prims)
	if err != nil {
		ps.err = err
		return ps
	}
	ps.png, ps.box, err = EncodePNG(annotated, b.scale)
	if err != nil {
		ps.err = fmt.Errorf("render template: %w", err)
	}
	return ps
}

// sheetPage fits the sheet image inside the margins and prints the text
// fields over it, mapping template units onto the placed image.
func (b *Builder) sheetPage(pdf *fpdf.Fpdf, name string, ps preparedSheet, doc Document) {
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()
	availW := pageW - 2*pageMargin
	availH := pageH - 2*pageMargin

	ratio := availW / ps.box.W
	if h := ps.box.H * ratio; h > availH {
		ratio = availH / ps.box.H
	}
	w, h := ps.box.W*ratio, ps.box.H*ratio
	x0 := (pageW - w) / 2
	y0 := pageMargin

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(ps.png))
	pdf.ImageOptions(name, x0, y0, w, h, false, opts, 0, "")

	pdf.SetTextColor(0, 0, 0)
	for _, f := range ps.layout.Fields {
		v := doc.Field(f.Key)
		if v == "" {
			continue
		}
		pdf.SetFont(fontFamily, "", f.Size)
		pdf.Text(x0+f.X*ratio, y0+f.Y*ratio, b.text(v))
	}
}

func (b *Builder) errorPage(pdf *fpdf.Fpdf, s Sheet) {
	pdf.AddPage()
	pdf.SetFont(fontFamily, "B", 14)
	pdf.SetTextColor(180, 30, 30)
	pdf.MultiCell(0, 8, b.text(fmt.Sprintf("No se pudo cargar la plantilla del odontograma (%s).", s)), "", "L", false)
	pdf.SetFont(fontFamily, "", 11)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(0, lineHeight, b.text("El resto del documento se generó normalmente."), "", "L", false)
}

func (b *Builder) notesPage(pdf *fpdf.Fpdf, doc Document) {
	if doc.Visit.Diagnosis == "" && doc.Visit.Treatment == "" {
		return
	}
	pdf.AddPage()
	pdf.SetTextColor(0, 0, 0)
	section := func(title, body string) {
		if body == "" {
			return
		}
		pdf.SetFont(fontFamily, "B", 13)
		pdf.MultiCell(0, 8, b.text(title), "", "L", false)
		pdf.SetFont(fontFamily, "", 11)
		pdf.MultiCell(0, lineHeight, b.text(body), "", "L", false)
		pdf.Ln(4)
	}
	section("Diagnóstico", doc.Visit.Diagnosis)
	section("Tratamiento", doc.Visit.Treatment)
}

// text converts UTF-8 into the Windows-1252 bytes the core fonts expect.
// Encoders are stateful, so each call gets its own.
func (b *Builder) text(s string) string {
	out, err := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()).String(s)
	if err != nil {
		return s
	}
	return out
}
