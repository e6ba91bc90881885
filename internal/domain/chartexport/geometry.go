package chartexport

import (
	"errors"
	"fmt"

	"github.com/odonto/odonto/internal/domain/odontogram"
)

var (
	ErrNoAnchor        = errors.New("no template anchor for tooth")
	ErrInvalidGeometry = errors.New("invalid tooth geometry")
)

// Kind is a drawing primitive shape.
type Kind string

const (
	KindLine    Kind = "line"
	KindPolygon Kind = "polygon"
	KindCircle  Kind = "circle"
	KindRect    Kind = "rect"
)

// Mark is the clinical meaning of a primitive.
type Mark string

const (
	MarkExtraction Mark = "extraction"
	MarkFill       Mark = "fill"
	MarkSector     Mark = "sector"
	MarkCrown      Mark = "crown"
	MarkProsthesis Mark = "prosthesis"
)

type Point struct {
	X, Y float64
}

// Primitive is one renderer-independent shape placed on a template.
// Lines use Points[0..1], rects use Points[0] as the top-left corner and
// Points[1] as the bottom-right corner, circles use Center and Radius.
type Primitive struct {
	Tooth       odontogram.ToothID
	Mark        Mark
	Kind        Kind
	Points      []Point
	Center      Point
	Radius      float64
	Color       string
	Filled      bool
	Opacity     float64
	StrokeWidth float64
}

var palette = map[odontogram.Color]string{
	odontogram.ColorRed:  "#d32f2f",
	odontogram.ColorBlue: "#1565c0",
}

// Hex returns the drawing color for an overlay color.
func Hex(c odontogram.Color) string {
	if h, ok := palette[c]; ok {
		return h
	}
	return palette[odontogram.ColorRed]
}

const (
	fillInset       = 3
	crownGap        = 4
	prosthesisReach = 6
)

// sectorPolygon returns the face of a tooth box: trapezoids for the four
// outer faces and the inner half-size square for the center.
func sectorPolygon(s odontogram.Sector, x, y, h float64) []Point {
	i := h / 2
	switch s {
	case odontogram.SectorTop:
		return []Point{{x - h, y - h}, {x + h, y - h}, {x + i, y - i}, {x - i, y - i}}
	case odontogram.SectorBottom:
		return []Point{{x - h, y + h}, {x + h, y + h}, {x + i, y + i}, {x - i, y + i}}
	case odontogram.SectorLeft:
		return []Point{{x - h, y - h}, {x - i, y - i}, {x - i, y + i}, {x - h, y + h}}
	case odontogram.SectorRight:
		return []Point{{x + h, y - h}, {x + i, y - i}, {x + i, y + i}, {x + h, y + h}}
	case odontogram.SectorCenter:
		return []Point{{x - i, y - i}, {x + i, y - i}, {x + i, y + i}, {x - i, y + i}}
	}
	return nil
}

// ToothMarks computes the overlays for one tooth. Overlays are additive: a
// tooth may carry a fill, sector faces, a crown and a prosthesis at once.
func ToothMarks(tc odontogram.ToothCondition, color odontogram.Color, table *AnchorTable) ([]Primitive, error) {
	a, ok := table.Anchor(tc.Number)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoAnchor, tc.Number)
	}
	if a.Half <= fillInset {
		return nil, fmt.Errorf("%w: tooth %d half size %.1f", ErrInvalidGeometry, tc.Number, a.Half)
	}
	x, y, h := a.X, a.Y, a.Half
	hex := Hex(color)

	var out []Primitive
	switch tc.Status {
	case odontogram.StatusExtraction:
		out = append(out,
			Primitive{Tooth: tc.Number, Mark: MarkExtraction, Kind: KindLine, Color: hex, StrokeWidth: 3,
				Points: []Point{{x - h, y - h}, {x + h, y + h}}},
			Primitive{Tooth: tc.Number, Mark: MarkExtraction, Kind: KindLine, Color: hex, StrokeWidth: 3,
				Points: []Point{{x + h, y - h}, {x - h, y + h}}},
		)
	case odontogram.StatusHealthy, odontogram.StatusMissing, "":
	default:
		out = append(out, Primitive{Tooth: tc.Number, Mark: MarkFill, Kind: KindRect, Color: hex,
			Filled: true, Opacity: 0.35,
			Points: []Point{{x - h + fillInset, y - h + fillInset}, {x + h - fillInset, y + h - fillInset}}})
	}

	for _, s := range tc.Sectors {
		if !s.HasRestoration {
			continue
		}
		poly := sectorPolygon(s.Sector, x, y, h)
		if poly == nil {
			continue
		}
		out = append(out, Primitive{Tooth: tc.Number, Mark: MarkSector, Kind: KindPolygon, Color: hex,
			Filled: true, Opacity: 1, Points: poly})
	}

	if tc.HasCrown {
		out = append(out, Primitive{Tooth: tc.Number, Mark: MarkCrown, Kind: KindCircle, Color: hex,
			StrokeWidth: 2.5, Center: Point{x, y}, Radius: h + crownGap})
	}

	if tc.HasProsthesis {
		for _, dy := range []float64{-h / 2, h / 2} {
			out = append(out, Primitive{Tooth: tc.Number, Mark: MarkProsthesis, Kind: KindLine, Color: hex,
				StrokeWidth: 2.5,
				Points:      []Point{{x - h - prosthesisReach, y + dy}, {x + h + prosthesisReach, y + dy}}})
		}
	}
	return out, nil
}

// SkippedTooth records a tooth whose marks could not be placed.
type SkippedTooth struct {
	Tooth odontogram.ToothID
	Err   error
}

// ChartMarks computes overlays for every tooth of a chart. Teeth that fail
// are reported and skipped; the rest of the chart is still drawn.
func ChartMarks(chart odontogram.Chart, color odontogram.Color, table *AnchorTable) ([]Primitive, []SkippedTooth) {
	var out []Primitive
	var skipped []SkippedTooth
	for _, tc := range chart {
		if tc.IsDefault() {
			continue
		}
		marks, err := ToothMarks(tc, color, table)
		if err != nil {
			skipped = append(skipped, SkippedTooth{Tooth: tc.Number, Err: err})
			continue
		}
		out = append(out, marks...)
	}
	return out, skipped
}
