package odontogram

// Tool is the active editing tool. At most one tool is active at a time.
type Tool string

const (
	ToolNone       Tool = "none"
	ToolSector     Tool = "sector"
	ToolCrown      Tool = "crown"
	ToolProsthesis Tool = "prosthesis"
	ToolExtraction Tool = "extraction"
)

func (t Tool) Valid() bool {
	switch t {
	case ToolNone, ToolSector, ToolCrown, ToolProsthesis, ToolExtraction:
		return true
	}
	return false
}

// Color distinguishes render contexts (current vs historical). It carries no
// meaning in the chart data.
type Color string

const (
	ColorRed  Color = "red"
	ColorBlue Color = "blue"
)

func (c Color) Valid() bool { return c == ColorRed || c == ColorBlue }

// EditorOptions configures a new Editor.
type EditorOptions struct {
	InitialConditions Chart
	ReadOnly          bool
	Color             Color
	// OnUpdate receives a copy of the full chart after every applied edit.
	OnUpdate func(Chart)
}

// Editor owns one chart for the duration of an editing session. It is not
// safe for concurrent use; callers serialize access.
type Editor struct {
	chart    Chart
	index    map[ToothID]int
	tool     Tool
	readOnly bool
	color    Color
	onUpdate func(Chart)
}

// NewEditor materializes the initial conditions and starts with no tool active.
func NewEditor(opts EditorOptions) *Editor {
	chart := Materialize(opts.InitialConditions)
	index := make(map[ToothID]int, len(chart))
	for i, tc := range chart {
		index[tc.Number] = i
	}
	color := opts.Color
	if !color.Valid() {
		color = ColorRed
	}
	return &Editor{
		chart:    chart,
		index:    index,
		tool:     ToolNone,
		readOnly: opts.ReadOnly,
		color:    color,
		onUpdate: opts.OnUpdate,
	}
}

func (e *Editor) Tool() Tool { return e.tool }

func (e *Editor) ReadOnly() bool { return e.readOnly }

func (e *Editor) Color() Color { return e.color }

// Chart returns a copy of the chart being edited.
func (e *Editor) Chart() Chart { return e.chart.Clone() }

// Activate selects a tool with radio-button semantics: activating the active
// tool turns it off, activating another tool replaces it.
func (e *Editor) Activate(t Tool) {
	if e.readOnly || !t.Valid() {
		return
	}
	if t == e.tool || t == ToolNone {
		e.tool = ToolNone
		return
	}
	e.tool = t
}

func (e *Editor) tooth(id ToothID) *ToothCondition {
	i, ok := e.index[id]
	if !ok {
		return nil
	}
	return &e.chart[i]
}

// editable returns the tooth when the editor accepts edits with tool t.
func (e *Editor) editable(id ToothID, t Tool) *ToothCondition {
	if e.readOnly || e.tool != t {
		return nil
	}
	return e.tooth(id)
}

// SetToothStatus replaces the status of a tooth. It only applies when no tool
// is active.
func (e *Editor) SetToothStatus(id ToothID, status Status) bool {
	tc := e.editable(id, ToolNone)
	if tc == nil || !status.Valid() {
		return false
	}
	tc.Status = status
	e.notify()
	return true
}

// ToggleSector flips the restoration flag of one face, adding the face when
// it was never recorded.
func (e *Editor) ToggleSector(id ToothID, sector Sector) bool {
	tc := e.editable(id, ToolSector)
	if tc == nil || tc.Status.Blocking() || !sector.Valid() {
		return false
	}
	for i := range tc.Sectors {
		if tc.Sectors[i].Sector == sector {
			tc.Sectors[i].HasRestoration = !tc.Sectors[i].HasRestoration
			e.notify()
			return true
		}
	}
	tc.Sectors = append(tc.Sectors, ToothSector{Sector: sector, HasRestoration: true})
	e.notify()
	return true
}

func (e *Editor) ToggleCrown(id ToothID) bool {
	tc := e.editable(id, ToolCrown)
	if tc == nil || tc.Status.Blocking() {
		return false
	}
	tc.HasCrown = !tc.HasCrown
	e.notify()
	return true
}

func (e *Editor) ToggleProsthesis(id ToothID) bool {
	tc := e.editable(id, ToolProsthesis)
	if tc == nil || tc.Status.Blocking() {
		return false
	}
	tc.HasProsthesis = !tc.HasProsthesis
	e.notify()
	return true
}

// ToggleExtraction marks a tooth for extraction, or reverts an extraction to
// healthy. It ignores the blocking guard, so a missing tooth becomes
// extraction.
func (e *Editor) ToggleExtraction(id ToothID) bool {
	tc := e.editable(id, ToolExtraction)
	if tc == nil {
		return false
	}
	if tc.Status == StatusExtraction {
		tc.Status = StatusHealthy
	} else {
		tc.Status = StatusExtraction
	}
	e.notify()
	return true
}

func (e *Editor) notify() {
	if e.onUpdate != nil {
		e.onUpdate(e.chart.Clone())
	}
}

// Summary aggregates the chart for read-only rendering.
type Summary struct {
	ByStatus         map[Status]int `json:"by_status"`
	Crowns           int            `json:"crowns"`
	Prostheses       int            `json:"prostheses"`
	RestoredSectors  int            `json:"restored_sectors"`
	TeethWithChanges int            `json:"teeth_with_changes"`
}

func (e *Editor) Summary() Summary { return Summarize(e.chart) }

// Summarize counts statuses and marks over a chart.
func Summarize(c Chart) Summary {
	s := Summary{ByStatus: make(map[Status]int, len(Statuses))}
	for _, st := range Statuses {
		s.ByStatus[st] = 0
	}
	for _, tc := range c {
		st := tc.Status
		if st == "" {
			st = StatusHealthy
		}
		s.ByStatus[st]++
		if tc.HasCrown {
			s.Crowns++
		}
		if tc.HasProsthesis {
			s.Prostheses++
		}
		for _, sec := range tc.Sectors {
			if sec.HasRestoration {
				s.RestoredSectors++
			}
		}
		if !tc.IsDefault() {
			s.TeethWithChanges++
		}
	}
	return s
}

// LegendEntry labels one status in the read-only legend.
type LegendEntry struct {
	Status Status `json:"status"`
	Label  string `json:"label"`
}

var legendLabels = map[Status]string{
	StatusHealthy:    "Sano",
	StatusCaries:     "Caries",
	StatusFilling:    "Obturación",
	StatusCrown:      "Corona",
	StatusExtraction: "Extracción",
	StatusRootCanal:  "Endodoncia",
	StatusImplant:    "Implante",
	StatusMissing:    "Ausente",
}

// Legend returns the status legend in display order.
func Legend() []LegendEntry {
	out := make([]LegendEntry, 0, len(Statuses))
	for _, st := range Statuses {
		out = append(out, LegendEntry{Status: st, Label: legendLabels[st]})
	}
	return out
}
