package chartexport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odonto/odonto/internal/domain/odontogram"
)

func TestFrontAnchors_CoverEveryTooth(t *testing.T) {
	seen := map[Anchor]odontogram.ToothID{}
	for _, id := range odontogram.AllValidToothIDs() {
		a, ok := FrontAnchors.Anchor(id)
		require.True(t, ok, "tooth %d has no anchor", id)
		if id.Deciduous() {
			assert.Equal(t, 15.0, a.Half)
		} else {
			assert.Equal(t, 18.0, a.Half)
		}
		prev, dup := seen[a]
		assert.False(t, dup, "teeth %d and %d share an anchor", prev, id)
		seen[a] = id
	}
}

func TestAnchorTable_Lookup(t *testing.T) {
	a, ok := FrontAnchors.Anchor(46)
	require.True(t, ok)
	assert.Equal(t, Anchor{X: 205, Y: 660, Half: 18}, a)

	_, ok = FrontAnchors.Anchor(19)
	assert.False(t, ok)

	var nilTable *AnchorTable
	_, ok = nilTable.Anchor(11)
	assert.False(t, ok)

	sparse := NewAnchorTable(map[odontogram.ToothID]Anchor{11: {X: 1, Y: 2, Half: 5}, 99: {X: 3, Y: 4, Half: 5}})
	_, ok = sparse.Anchor(11)
	assert.True(t, ok)
	_, ok = sparse.Anchor(12)
	assert.False(t, ok)
}

func TestToothMarks_Extraction(t *testing.T) {
	prims, err := ToothMarks(odontogram.ToothCondition{Number: 46, Status: odontogram.StatusExtraction}, odontogram.ColorRed, FrontAnchors)
	require.NoError(t, err)
	require.Len(t, prims, 2)
	assert.Equal(t, KindLine, prims[0].Kind)
	assert.Equal(t, []Point{{187, 642}, {223, 678}}, prims[0].Points)
	assert.Equal(t, []Point{{223, 642}, {187, 678}}, prims[1].Points)
	assert.Equal(t, "#d32f2f", prims[0].Color)
}

func TestToothMarks_StatusFill(t *testing.T) {
	for _, s := range []odontogram.Status{odontogram.StatusCaries, odontogram.StatusFilling, odontogram.StatusCrown,
		odontogram.StatusRootCanal, odontogram.StatusImplant} {
		prims, err := ToothMarks(odontogram.ToothCondition{Number: 46, Status: s}, odontogram.ColorBlue, FrontAnchors)
		require.NoError(t, err)
		require.Len(t, prims, 1, "status %s", s)
		assert.Equal(t, KindRect, prims[0].Kind)
		assert.Equal(t, MarkFill, prims[0].Mark)
		assert.Equal(t, "#1565c0", prims[0].Color)
	}

	for _, s := range []odontogram.Status{odontogram.StatusHealthy, odontogram.StatusMissing} {
		prims, err := ToothMarks(odontogram.ToothCondition{Number: 46, Status: s}, odontogram.ColorRed, FrontAnchors)
		require.NoError(t, err)
		assert.Empty(t, prims, "status %s", s)
	}
}

func TestToothMarks_Additive(t *testing.T) {
	tc := odontogram.ToothCondition{
		Number: 11,
		Status: odontogram.StatusCaries,
		Sectors: []odontogram.ToothSector{
			{Sector: odontogram.SectorTop, HasRestoration: true},
			{Sector: odontogram.SectorCenter, HasRestoration: true},
			{Sector: odontogram.SectorLeft, HasRestoration: false},
		},
		HasCrown:      true,
		HasProsthesis: true,
	}
	prims, err := ToothMarks(tc, odontogram.ColorRed, FrontAnchors)
	require.NoError(t, err)

	byMark := map[Mark]int{}
	for _, p := range prims {
		byMark[p.Mark]++
	}
	assert.Equal(t, map[Mark]int{MarkFill: 1, MarkSector: 2, MarkCrown: 1, MarkProsthesis: 2}, byMark)
}

func TestToothMarks_ProsthesisExceedsBox(t *testing.T) {
	prims, err := ToothMarks(odontogram.ToothCondition{Number: 46, Status: odontogram.StatusHealthy, HasProsthesis: true}, odontogram.ColorRed, FrontAnchors)
	require.NoError(t, err)
	require.Len(t, prims, 2)
	for _, p := range prims {
		assert.Equal(t, 205.0-18-6, p.Points[0].X)
		assert.Equal(t, 205.0+18+6, p.Points[1].X)
		assert.Equal(t, p.Points[0].Y, p.Points[1].Y)
	}
}

func TestToothMarks_CenterSectorIsInnerSquare(t *testing.T) {
	tc := odontogram.ToothCondition{Number: 46, Status: odontogram.StatusHealthy,
		Sectors: []odontogram.ToothSector{{Sector: odontogram.SectorCenter, HasRestoration: true}}}
	prims, err := ToothMarks(tc, odontogram.ColorRed, FrontAnchors)
	require.NoError(t, err)
	require.Len(t, prims, 1)
	assert.Equal(t, []Point{{196, 651}, {214, 651}, {214, 669}, {196, 669}}, prims[0].Points)
}

func TestToothMarks_Errors(t *testing.T) {
	_, err := ToothMarks(odontogram.ToothCondition{Number: 99, Status: odontogram.StatusCaries}, odontogram.ColorRed, FrontAnchors)
	assert.ErrorIs(t, err, ErrNoAnchor)

	_, err = ToothMarks(odontogram.ToothCondition{Number: 11, Status: odontogram.StatusCaries}, odontogram.ColorRed, nil)
	assert.ErrorIs(t, err, ErrNoAnchor)

	tiny := NewAnchorTable(map[odontogram.ToothID]Anchor{11: {X: 10, Y: 10, Half: 2}})
	_, err = ToothMarks(odontogram.ToothCondition{Number: 11, Status: odontogram.StatusCaries}, odontogram.ColorRed, tiny)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestChartMarks_SkipsFailingTeeth(t *testing.T) {
	table := NewAnchorTable(map[odontogram.ToothID]Anchor{11: {X: 100, Y: 100, Half: 18}})
	chart := odontogram.Chart{
		{Number: 11, Status: odontogram.StatusExtraction},
		{Number: 12, Status: odontogram.StatusCaries},
		{Number: 13, Status: odontogram.StatusHealthy},
	}
	prims, skipped := ChartMarks(chart, odontogram.ColorRed, table)
	assert.Len(t, prims, 2)
	require.Len(t, skipped, 1)
	assert.Equal(t, odontogram.ToothID(12), skipped[0].Tooth)
	assert.ErrorIs(t, skipped[0].Err, ErrNoAnchor)
}
