package odontogram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type updateRecorder struct {
	calls []Chart
}

func (r *updateRecorder) record(c Chart) { r.calls = append(r.calls, c) }

func newTestEditor(initial Chart) (*Editor, *updateRecorder) {
	rec := &updateRecorder{}
	e := NewEditor(EditorOptions{InitialConditions: initial, OnUpdate: rec.record})
	return e, rec
}

func TestEditor_SetToothStatus(t *testing.T) {
	e, rec := newTestEditor(nil)

	require.True(t, e.SetToothStatus(18, StatusCaries))

	chart := e.Chart()
	require.Len(t, chart, ToothCount)
	sparse := chart.Sparse()
	require.Len(t, sparse, 1)
	assert.Equal(t, ToothCondition{Number: 18, Status: StatusCaries}, sparse[0])

	require.Len(t, rec.calls, 1)
	assert.Equal(t, chart, rec.calls[0])
}

func TestEditor_SetToothStatus_KeepsMarks(t *testing.T) {
	e, _ := newTestEditor(Chart{{Number: 21, Status: StatusFilling, HasCrown: true,
		Sectors: []ToothSector{{Sector: SectorTop, HasRestoration: true}}}})

	require.True(t, e.SetToothStatus(21, StatusRootCanal))
	got, _ := e.Chart().Find(21)
	assert.Equal(t, StatusRootCanal, got.Status)
	assert.True(t, got.HasCrown)
	assert.Len(t, got.Sectors, 1)
}

func TestEditor_SetToothStatus_RequiresNoTool(t *testing.T) {
	e, rec := newTestEditor(nil)
	e.Activate(ToolCrown)

	assert.False(t, e.SetToothStatus(11, StatusCaries))
	got, _ := e.Chart().Find(11)
	assert.Equal(t, StatusHealthy, got.Status)
	assert.Empty(t, rec.calls)
}

func TestEditor_SetToothStatus_RejectsInvalidInput(t *testing.T) {
	e, rec := newTestEditor(nil)
	assert.False(t, e.SetToothStatus(19, StatusCaries))
	assert.False(t, e.SetToothStatus(11, "chipped"))
	assert.Empty(t, rec.calls)
}

func TestEditor_ToolModes(t *testing.T) {
	e, _ := newTestEditor(nil)
	assert.Equal(t, ToolNone, e.Tool())

	e.Activate(ToolSector)
	assert.Equal(t, ToolSector, e.Tool())

	e.Activate(ToolCrown)
	assert.Equal(t, ToolCrown, e.Tool(), "activating crown while sector is active leaves only crown")

	e.Activate(ToolCrown)
	assert.Equal(t, ToolNone, e.Tool(), "activating the active tool turns it off")

	e.Activate(ToolExtraction)
	e.Activate(ToolNone)
	assert.Equal(t, ToolNone, e.Tool())

	e.Activate("laser")
	assert.Equal(t, ToolNone, e.Tool())
}

func TestEditor_ToggleSector(t *testing.T) {
	e, rec := newTestEditor(nil)
	e.Activate(ToolSector)

	require.True(t, e.ToggleSector(21, SectorTop))
	got, _ := e.Chart().Find(21)
	assert.Equal(t, []ToothSector{{Sector: SectorTop, HasRestoration: true}}, got.Sectors)

	require.True(t, e.ToggleSector(21, SectorTop))
	got, _ = e.Chart().Find(21)
	assert.Equal(t, []ToothSector{{Sector: SectorTop, HasRestoration: false}}, got.Sectors,
		"second toggle flips the flag and keeps the entry")

	require.True(t, e.ToggleSector(21, SectorCenter))
	got, _ = e.Chart().Find(21)
	assert.Len(t, got.Sectors, 2)
	assert.Len(t, rec.calls, 3)
}

func TestEditor_ToggleSector_WrongMode(t *testing.T) {
	e, rec := newTestEditor(nil)
	assert.False(t, e.ToggleSector(21, SectorTop))
	e.Activate(ToolCrown)
	assert.False(t, e.ToggleSector(21, SectorTop))
	assert.Empty(t, rec.calls)
}

func TestEditor_BlockedTeeth(t *testing.T) {
	for _, status := range []Status{StatusMissing, StatusExtraction} {
		t.Run(string(status), func(t *testing.T) {
			e, rec := newTestEditor(Chart{{Number: 36, Status: status}})
			before := e.Chart()

			e.Activate(ToolCrown)
			assert.False(t, e.ToggleCrown(36))
			e.Activate(ToolProsthesis)
			assert.False(t, e.ToggleProsthesis(36))
			e.Activate(ToolSector)
			assert.False(t, e.ToggleSector(36, SectorLeft))

			assert.Equal(t, before, e.Chart())
			assert.Empty(t, rec.calls)
		})
	}
}

func TestEditor_ToggleCrownAndProsthesis(t *testing.T) {
	e, rec := newTestEditor(nil)

	e.Activate(ToolCrown)
	require.True(t, e.ToggleCrown(46))
	assert.False(t, e.ToggleProsthesis(46))

	e.Activate(ToolProsthesis)
	require.True(t, e.ToggleProsthesis(46))
	assert.False(t, e.ToggleCrown(46))

	got, _ := e.Chart().Find(46)
	assert.True(t, got.HasCrown)
	assert.True(t, got.HasProsthesis)

	require.True(t, e.ToggleProsthesis(46))
	got, _ = e.Chart().Find(46)
	assert.False(t, got.HasProsthesis)
	assert.Len(t, rec.calls, 3)
}

func TestEditor_ToggleExtraction(t *testing.T) {
	e, _ := newTestEditor(Chart{{Number: 38, Status: StatusMissing}, {Number: 17, Status: StatusCaries}})
	e.Activate(ToolExtraction)

	require.True(t, e.ToggleExtraction(17))
	got, _ := e.Chart().Find(17)
	assert.Equal(t, StatusExtraction, got.Status)

	require.True(t, e.ToggleExtraction(17))
	got, _ = e.Chart().Find(17)
	assert.Equal(t, StatusHealthy, got.Status)

	// No blocking guard: a missing tooth becomes extraction.
	require.True(t, e.ToggleExtraction(38))
	got, _ = e.Chart().Find(38)
	assert.Equal(t, StatusExtraction, got.Status)
}

func TestEditor_ReadOnly(t *testing.T) {
	calls := 0
	e := NewEditor(EditorOptions{
		InitialConditions: Chart{{Number: 11, Status: StatusCaries}},
		ReadOnly:          true,
		OnUpdate:          func(Chart) { calls++ },
	})
	before := e.Chart()

	assert.False(t, e.SetToothStatus(11, StatusFilling))
	for _, tool := range []Tool{ToolSector, ToolCrown, ToolProsthesis, ToolExtraction} {
		e.Activate(tool)
		assert.Equal(t, ToolNone, e.Tool())
	}
	assert.False(t, e.ToggleSector(11, SectorTop))
	assert.False(t, e.ToggleCrown(11))
	assert.False(t, e.ToggleProsthesis(11))
	assert.False(t, e.ToggleExtraction(11))

	assert.Equal(t, before, e.Chart())
	assert.Zero(t, calls)

	summary := e.Summary()
	assert.Equal(t, 1, summary.ByStatus[StatusCaries])
	assert.Equal(t, ToothCount-1, summary.ByStatus[StatusHealthy])
}

func TestEditor_ChartIsCopy(t *testing.T) {
	e, _ := newTestEditor(nil)
	c := e.Chart()
	c[0].Status = StatusMissing
	got, _ := e.Chart().Find(c[0].Number)
	assert.Equal(t, StatusHealthy, got.Status)
}

func TestEditor_DefaultColor(t *testing.T) {
	assert.Equal(t, ColorRed, NewEditor(EditorOptions{}).Color())
	assert.Equal(t, ColorBlue, NewEditor(EditorOptions{Color: ColorBlue}).Color())
}

func TestSummarize(t *testing.T) {
	s := Summarize(Materialize(Chart{
		{Number: 11, Status: StatusCaries, HasCrown: true},
		{Number: 12, Status: StatusMissing},
		{Number: 13, Status: StatusHealthy, HasProsthesis: true,
			Sectors: []ToothSector{{Sector: SectorTop, HasRestoration: true}, {Sector: SectorLeft}}},
	}))
	assert.Equal(t, 1, s.ByStatus[StatusCaries])
	assert.Equal(t, 1, s.ByStatus[StatusMissing])
	assert.Equal(t, ToothCount-2, s.ByStatus[StatusHealthy])
	assert.Equal(t, 1, s.Crowns)
	assert.Equal(t, 1, s.Prostheses)
	assert.Equal(t, 1, s.RestoredSectors)
	assert.Equal(t, 3, s.TeethWithChanges)
}

func TestLegend(t *testing.T) {
	legend := Legend()
	require.Len(t, legend, len(Statuses))
	for i, entry := range legend {
		assert.Equal(t, Statuses[i], entry.Status)
		assert.NotEmpty(t, entry.Label)
	}
}
