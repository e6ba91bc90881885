package chartexport

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMalformedTemplate = errors.New("template has no closing svg element")

// MarksGroupID is the id of the group that carries the overlays.
const MarksGroupID = "odontogram-marks"

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func writePrimitive(b *strings.Builder, p Primitive) {
	opacity := p.Opacity
	if opacity <= 0 {
		opacity = 1
	}
	switch p.Kind {
	case KindLine:
		if len(p.Points) < 2 {
			return
		}
		fmt.Fprintf(b, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%s" stroke-linecap="round"/>`,
			num(p.Points[0].X), num(p.Points[0].Y), num(p.Points[1].X), num(p.Points[1].Y), p.Color, num(p.StrokeWidth))
	case KindRect:
		if len(p.Points) < 2 {
			return
		}
		fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s" fill-opacity="%s" stroke="none"/>`,
			num(p.Points[0].X), num(p.Points[0].Y),
			num(p.Points[1].X-p.Points[0].X), num(p.Points[1].Y-p.Points[0].Y), p.Color, num(opacity))
	case KindPolygon:
		if len(p.Points) < 3 {
			return
		}
		pts := make([]string, len(p.Points))
		for i, pt := range p.Points {
			pts[i] = num(pt.X) + "," + num(pt.Y)
		}
		fmt.Fprintf(b, `<polygon points="%s" fill="%s" fill-opacity="%s" stroke="none"/>`,
			strings.Join(pts, " "), p.Color, num(opacity))
	case KindCircle:
		fmt.Fprintf(b, `<circle cx="%s" cy="%s" r="%s" fill="none" stroke="%s" stroke-width="%s"/>`,
			num(p.Center.X), num(p.Center.Y), num(p.Radius), p.Color, num(p.StrokeWidth))
	}
}

// Annotate returns a copy of the template with the primitives appended in a
// group just before the closing svg element.
func Annotate(template []byte, prims []Primitive) ([]byte, error) {
	end := bytes.LastIndex(template, []byte("</svg>"))
	if end < 0 {
		return nil, ErrMalformedTemplate
	}

	var g strings.Builder
	g.WriteString(`<g id="` + MarksGroupID + `">`)
	for _, p := range prims {
		writePrimitive(&g, p)
	}
	g.WriteString(`</g>`)

	out := make([]byte, 0, len(template)+g.Len())
	out = append(out, template[:end]...)
	out = append(out, g.String()...)
	out = append(out, template[end:]...)
	return out, nil
}
