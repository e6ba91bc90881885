package odontogram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finalized(c Chart) VisitChart { return VisitChart{Finalized: true, Current: c} }

func historyTooth(t *testing.T, h History, id ToothID) ToothCondition {
	t.Helper()
	tc, ok := h.Chart.Find(id)
	require.True(t, ok, "tooth %d missing from history", id)
	return tc
}

func TestAccumulate_Empty(t *testing.T) {
	h := Accumulate(nil)
	assert.Empty(t, h.Chart)
	assert.NotNil(t, h.ExtractedToothIDs)
	assert.Empty(t, h.ExtractedToothIDs)
}

func TestAccumulate_SkipsDrafts(t *testing.T) {
	h := Accumulate([]VisitChart{
		{Finalized: false, Current: Chart{{Number: 11, Status: StatusExtraction}}},
		finalized(Chart{{Number: 12, Status: StatusCaries}}),
	})
	_, ok := h.Chart.Find(11)
	assert.False(t, ok)
	assert.Equal(t, StatusCaries, historyTooth(t, h, 12).Status)
	assert.Empty(t, h.ExtractedToothIDs)
}

func TestAccumulate_ExtractionBeatsEarlierStatus(t *testing.T) {
	a := finalized(Chart{{Number: 11, Status: StatusCaries}})
	b := finalized(Chart{{Number: 11, Status: StatusExtraction}})

	for name, visits := range map[string][]VisitChart{
		"a then b": {a, b},
		"b then a": {b, a},
	} {
		t.Run(name, func(t *testing.T) {
			h := Accumulate(visits)
			assert.Equal(t, StatusExtraction, historyTooth(t, h, 11).Status)
			assert.Equal(t, []ToothID{11}, h.ExtractedToothIDs)
		})
	}
}

func TestAccumulate_ExtractionOutranksMissing(t *testing.T) {
	a := finalized(Chart{{Number: 26, Status: StatusExtraction}})
	b := finalized(Chart{{Number: 26, Status: StatusMissing}})
	assert.Equal(t, StatusExtraction, historyTooth(t, Accumulate([]VisitChart{a, b}), 26).Status)
	assert.Equal(t, StatusExtraction, historyTooth(t, Accumulate([]VisitChart{b, a}), 26).Status)
}

func TestAccumulate_MissingOverridesClinicalStatus(t *testing.T) {
	h := Accumulate([]VisitChart{
		finalized(Chart{{Number: 36, Status: StatusFilling}}),
		finalized(Chart{{Number: 36, Status: StatusMissing}}),
		finalized(Chart{{Number: 36, Status: StatusCaries}}),
	})
	assert.Equal(t, StatusMissing, historyTooth(t, h, 36).Status)
	assert.Contains(t, h.ExtractedToothIDs, ToothID(36))
}

func TestAccumulate_FirstNonHealthyStatusKept(t *testing.T) {
	h := Accumulate([]VisitChart{
		finalized(Chart{{Number: 14, Status: StatusHealthy}}),
		finalized(Chart{{Number: 14, Status: StatusCaries}}),
		finalized(Chart{{Number: 14, Status: StatusFilling}}),
		finalized(Chart{{Number: 14, Status: StatusHealthy}}),
	})
	assert.Equal(t, StatusCaries, historyTooth(t, h, 14).Status)
}

func TestAccumulate_StickyFlags(t *testing.T) {
	h := Accumulate([]VisitChart{
		finalized(Chart{{Number: 46, Status: StatusHealthy}}),
		finalized(Chart{{Number: 46, Status: StatusHealthy, HasCrown: true}}),
		finalized(Chart{{Number: 46, Status: StatusHealthy, HasProsthesis: true}}),
		finalized(Chart{{Number: 46, Status: StatusHealthy, HasCrown: false}}),
	})
	tc := historyTooth(t, h, 46)
	assert.True(t, tc.HasCrown)
	assert.True(t, tc.HasProsthesis)
}

func TestAccumulate_SectorUnionFirstSeenWins(t *testing.T) {
	h := Accumulate([]VisitChart{
		finalized(Chart{{Number: 21, Status: StatusFilling, Sectors: []ToothSector{
			{Sector: SectorTop, HasRestoration: true},
		}}}),
		finalized(Chart{{Number: 21, Status: StatusFilling, Sectors: []ToothSector{
			{Sector: SectorTop, HasRestoration: false},
			{Sector: SectorCenter, HasRestoration: true},
		}}}),
	})
	tc := historyTooth(t, h, 21)
	assert.Equal(t, []ToothSector{
		{Sector: SectorTop, HasRestoration: true},
		{Sector: SectorCenter, HasRestoration: true},
	}, tc.Sectors)
}

func TestAccumulate_Idempotent(t *testing.T) {
	visits := []VisitChart{
		finalized(Chart{
			{Number: 11, Status: StatusCaries, Sectors: []ToothSector{{Sector: SectorLeft, HasRestoration: true}}},
			{Number: 36, Status: StatusMissing},
		}),
		finalized(Chart{
			{Number: 11, Status: StatusExtraction},
			{Number: 46, Status: StatusRootCanal, HasCrown: true},
		}),
	}
	once := Accumulate(visits)
	twice := Accumulate(append(append([]VisitChart{}, visits...), visits...))
	assert.Equal(t, once, twice)
	assert.Equal(t, once, Accumulate(visits))
}

func TestAccumulate_DoesNotAliasInput(t *testing.T) {
	input := Chart{{Number: 11, Status: StatusFilling, Sectors: []ToothSector{{Sector: SectorTop, HasRestoration: true}}}}
	h := Accumulate([]VisitChart{finalized(input), finalized(Chart{{Number: 11, Status: StatusFilling,
		Sectors: []ToothSector{{Sector: SectorBottom, HasRestoration: true}}}})})

	assert.Len(t, historyTooth(t, h, 11).Sectors, 2)
	assert.Len(t, input[0].Sectors, 1)
}

func TestAccumulate_LayoutOrderAndInvalidIDs(t *testing.T) {
	h := Accumulate([]VisitChart{finalized(Chart{
		{Number: 38, Status: StatusCaries},
		{Number: 99, Status: StatusExtraction},
		{Number: 18, Status: StatusCaries},
		{Number: 55, Status: StatusMissing},
	})})
	require.Len(t, h.Chart, 3)
	assert.Equal(t, []ToothID{18, 55, 38}, []ToothID{h.Chart[0].Number, h.Chart[1].Number, h.Chart[2].Number})
	assert.Equal(t, []ToothID{55}, h.ExtractedToothIDs)
}

func TestAccumulate_ExtractedSorted(t *testing.T) {
	h := Accumulate([]VisitChart{finalized(Chart{
		{Number: 48, Status: StatusExtraction},
		{Number: 11, Status: StatusMissing},
		{Number: 36, Status: StatusMissing},
	})})
	assert.Equal(t, []ToothID{11, 36, 48}, h.ExtractedToothIDs)
}

func TestSeedChart(t *testing.T) {
	chart := SeedChart([]ToothID{36, 11, 99})
	require.Len(t, chart, ToothCount)
	for _, tc := range chart {
		switch tc.Number {
		case 11, 36:
			assert.Equal(t, StatusMissing, tc.Status)
		default:
			assert.Equal(t, StatusHealthy, tc.Status)
		}
	}
}
