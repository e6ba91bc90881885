package chartexport

import "github.com/odonto/odonto/internal/domain/odontogram"

// Anchor is the pixel center of a tooth box on a template, with the half
// width of the box.
type Anchor struct {
	X, Y float64
	Half float64
}

// AnchorTable maps tooth ids to template anchors. An entry with a zero Half
// is absent.
type AnchorTable struct {
	entries [odontogram.ToothCount]Anchor
}

// denseIndex re-encodes the 52 sparse tooth ids into 0..51: permanent
// quadrants 1-4 take 0..31, deciduous quadrants 5-8 take 32..51.
func denseIndex(id odontogram.ToothID) (int, bool) {
	if !id.Valid() {
		return 0, false
	}
	q, p := id.Quadrant(), int(id)%10
	if q <= 4 {
		return (q-1)*8 + p - 1, true
	}
	return 32 + (q-5)*5 + p - 1, true
}

// Anchor returns the anchor of a tooth. A nil table has no anchors.
func (t *AnchorTable) Anchor(id odontogram.ToothID) (Anchor, bool) {
	if t == nil {
		return Anchor{}, false
	}
	i, ok := denseIndex(id)
	if !ok {
		return Anchor{}, false
	}
	a := t.entries[i]
	return a, a.Half > 0
}

// NewAnchorTable builds a table from explicit entries. Invalid ids are ignored.
func NewAnchorTable(entries map[odontogram.ToothID]Anchor) *AnchorTable {
	t := &AnchorTable{}
	for id, a := range entries {
		if i, ok := denseIndex(id); ok {
			t.entries[i] = a
		}
	}
	return t
}

// FrontAnchors positions every tooth on the front sheet (viewBox 1000x1400).
// Entries are in dense index order.
var FrontAnchors = &AnchorTable{entries: [odontogram.ToothCount]Anchor{
	// quadrant 1, upper right permanent
	{X: 465, Y: 420, Half: 18}, // 11
	{X: 413, Y: 420, Half: 18}, // 12
	{X: 361, Y: 420, Half: 18}, // 13
	{X: 309, Y: 420, Half: 18}, // 14
	{X: 257, Y: 420, Half: 18}, // 15
	{X: 205, Y: 420, Half: 18}, // 16
	{X: 153, Y: 420, Half: 18}, // 17
	{X: 101, Y: 420, Half: 18}, // 18
	// quadrant 2, upper left permanent
	{X: 535, Y: 420, Half: 18}, // 21
	{X: 587, Y: 420, Half: 18}, // 22
	{X: 639, Y: 420, Half: 18}, // 23
	{X: 691, Y: 420, Half: 18}, // 24
	{X: 743, Y: 420, Half: 18}, // 25
	{X: 795, Y: 420, Half: 18}, // 26
	{X: 847, Y: 420, Half: 18}, // 27
	{X: 899, Y: 420, Half: 18}, // 28
	// quadrant 3, lower left permanent
	{X: 535, Y: 660, Half: 18}, // 31
	{X: 587, Y: 660, Half: 18}, // 32
	{X: 639, Y: 660, Half: 18}, // 33
	{X: 691, Y: 660, Half: 18}, // 34
	{X: 743, Y: 660, Half: 18}, // 35
	{X: 795, Y: 660, Half: 18}, // 36
	{X: 847, Y: 660, Half: 18}, // 37
	{X: 899, Y: 660, Half: 18}, // 38
	// quadrant 4, lower right permanent
	{X: 465, Y: 660, Half: 18}, // 41
	{X: 413, Y: 660, Half: 18}, // 42
	{X: 361, Y: 660, Half: 18}, // 43
	{X: 309, Y: 660, Half: 18}, // 44
	{X: 257, Y: 660, Half: 18}, // 45
	{X: 205, Y: 660, Half: 18}, // 46
	{X: 153, Y: 660, Half: 18}, // 47
	{X: 101, Y: 660, Half: 18}, // 48
	// quadrant 5, upper right deciduous
	{X: 465, Y: 500, Half: 15}, // 51
	{X: 413, Y: 500, Half: 15}, // 52
	{X: 361, Y: 500, Half: 15}, // 53
	{X: 309, Y: 500, Half: 15}, // 54
	{X: 257, Y: 500, Half: 15}, // 55
	// quadrant 6, upper left deciduous
	{X: 535, Y: 500, Half: 15}, // 61
	{X: 587, Y: 500, Half: 15}, // 62
	{X: 639, Y: 500, Half: 15}, // 63
	{X: 691, Y: 500, Half: 15}, // 64
	{X: 743, Y: 500, Half: 15}, // 65
	// quadrant 7, lower left deciduous
	{X: 535, Y: 580, Half: 15}, // 71
	{X: 587, Y: 580, Half: 15}, // 72
	{X: 639, Y: 580, Half: 15}, // 73
	{X: 691, Y: 580, Half: 15}, // 74
	{X: 743, Y: 580, Half: 15}, // 75
	// quadrant 8, lower right deciduous
	{X: 465, Y: 580, Half: 15}, // 81
	{X: 413, Y: 580, Half: 15}, // 82
	{X: 361, Y: 580, Half: 15}, // 83
	{X: 309, Y: 580, Half: 15}, // 84
	{X: 257, Y: 580, Half: 15}, // 85
}}
