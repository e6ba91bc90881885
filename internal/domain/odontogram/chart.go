// Package odontogram holds the dental chart model, the interactive chart
// editor and the historical accumulation of prior visits.
package odontogram

import (
	"fmt"
)

// ToothID is a tooth position in two-digit dental notation (quadrant digit
// followed by position digit).
type ToothID int

// Valid reports whether id is one of the 52 charted positions.
func (id ToothID) Valid() bool {
	q, p := int(id)/10, int(id)%10
	switch {
	case q >= 1 && q <= 4:
		return p >= 1 && p <= 8
	case q >= 5 && q <= 8:
		return p >= 1 && p <= 5
	}
	return false
}

// Quadrant returns the quadrant digit (1-8).
func (id ToothID) Quadrant() int { return int(id) / 10 }

// Deciduous reports whether id is a primary (baby) tooth.
func (id ToothID) Deciduous() bool { return id.Valid() && id.Quadrant() >= 5 }

// Status is the top-level clinical state of a tooth.
type Status string

const (
	StatusHealthy    Status = "healthy"
	StatusCaries     Status = "caries"
	StatusFilling    Status = "filling"
	StatusCrown      Status = "crown"
	StatusExtraction Status = "extraction"
	StatusRootCanal  Status = "root_canal"
	StatusImplant    Status = "implant"
	StatusMissing    Status = "missing"
)

// Statuses lists every status in legend order.
var Statuses = []Status{
	StatusHealthy,
	StatusCaries,
	StatusFilling,
	StatusCrown,
	StatusExtraction,
	StatusRootCanal,
	StatusImplant,
	StatusMissing,
}

var validStatuses = map[Status]bool{
	StatusHealthy:    true,
	StatusCaries:     true,
	StatusFilling:    true,
	StatusCrown:      true,
	StatusExtraction: true,
	StatusRootCanal:  true,
	StatusImplant:    true,
	StatusMissing:    true,
}

func (s Status) Valid() bool { return validStatuses[s] }

// Blocking reports whether a tooth in this state rejects sector, crown and
// prosthesis edits.
func (s Status) Blocking() bool {
	return s == StatusMissing || s == StatusExtraction
}

// Sector is one of the five faces of a tooth.
type Sector string

const (
	SectorTop    Sector = "top"
	SectorBottom Sector = "bottom"
	SectorLeft   Sector = "left"
	SectorRight  Sector = "right"
	SectorCenter Sector = "center"
)

// Sectors lists the five sectors in drawing order.
var Sectors = []Sector{SectorTop, SectorBottom, SectorLeft, SectorRight, SectorCenter}

func (s Sector) Valid() bool {
	switch s {
	case SectorTop, SectorBottom, SectorLeft, SectorRight, SectorCenter:
		return true
	}
	return false
}

// ToothSector records whether one face carries a restoration.
type ToothSector struct {
	Sector         Sector `json:"sector"`
	HasRestoration bool   `json:"hasRestoration"`
}

// ToothCondition is the per-tooth record stored in a chart.
type ToothCondition struct {
	Number        ToothID       `json:"number"`
	Status        Status        `json:"status"`
	Sectors       []ToothSector `json:"sectors,omitempty"`
	HasCrown      bool          `json:"hasCrown,omitempty"`
	HasProsthesis bool          `json:"hasProsthesis,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// Sector returns the recorded state of one face, if present.
func (c *ToothCondition) Sector(s Sector) (ToothSector, bool) {
	for _, ts := range c.Sectors {
		if ts.Sector == s {
			return ts, true
		}
	}
	return ToothSector{}, false
}

// IsDefault reports whether the condition carries nothing beyond a healthy status.
func (c *ToothCondition) IsDefault() bool {
	if c.Status != StatusHealthy && c.Status != "" {
		return false
	}
	if c.HasCrown || c.HasProsthesis || c.Notes != "" {
		return false
	}
	for _, s := range c.Sectors {
		if s.HasRestoration {
			return false
		}
	}
	return true
}

func (c ToothCondition) clone() ToothCondition {
	if c.Sectors != nil {
		sectors := make([]ToothSector, len(c.Sectors))
		copy(sectors, c.Sectors)
		c.Sectors = sectors
	}
	return c
}

// Chart is an ordered list of tooth conditions.
type Chart []ToothCondition

// Find returns the condition for id, if present.
func (c Chart) Find(id ToothID) (ToothCondition, bool) {
	for _, tc := range c {
		if tc.Number == id {
			return tc, true
		}
	}
	return ToothCondition{}, false
}

// Clone returns a deep copy.
func (c Chart) Clone() Chart {
	if c == nil {
		return nil
	}
	out := make(Chart, len(c))
	for i, tc := range c {
		out[i] = tc.clone()
	}
	return out
}

// Sparse drops entries that carry nothing beyond the healthy default.
func (c Chart) Sparse() Chart {
	out := Chart{}
	for _, tc := range c {
		if !tc.IsDefault() {
			out = append(out, tc.clone())
		}
	}
	return out
}

// QuadrantRow is one rendered row of the chart.
type QuadrantRow struct {
	Quadrant int
	Teeth    []ToothID
}

// Layout is the anatomical render order: upper permanent, upper deciduous,
// lower deciduous, lower permanent. Each row reads left to right as drawn.
var Layout = [8]QuadrantRow{
	{Quadrant: 1, Teeth: []ToothID{18, 17, 16, 15, 14, 13, 12, 11}},
	{Quadrant: 2, Teeth: []ToothID{21, 22, 23, 24, 25, 26, 27, 28}},
	{Quadrant: 5, Teeth: []ToothID{55, 54, 53, 52, 51}},
	{Quadrant: 6, Teeth: []ToothID{61, 62, 63, 64, 65}},
	{Quadrant: 8, Teeth: []ToothID{85, 84, 83, 82, 81}},
	{Quadrant: 7, Teeth: []ToothID{71, 72, 73, 74, 75}},
	{Quadrant: 4, Teeth: []ToothID{48, 47, 46, 45, 44, 43, 42, 41}},
	{Quadrant: 3, Teeth: []ToothID{31, 32, 33, 34, 35, 36, 37, 38}},
}

// ToothCount is the number of charted positions.
const ToothCount = 52

var layoutOrder = func() map[ToothID]int {
	m := make(map[ToothID]int, ToothCount)
	for _, row := range Layout {
		for _, id := range row.Teeth {
			m[id] = len(m)
		}
	}
	return m
}()

// AllValidToothIDs returns the 52 positions in layout order.
func AllValidToothIDs() []ToothID {
	ids := make([]ToothID, 0, ToothCount)
	for _, row := range Layout {
		ids = append(ids, row.Teeth...)
	}
	return ids
}

// LayoutIndex returns the position of id in the layout order.
func LayoutIndex(id ToothID) (int, bool) {
	i, ok := layoutOrder[id]
	return i, ok
}

// Materialize returns a full chart in layout order. Entries for unknown ids
// are dropped, the first entry wins for duplicated ids and every absent
// position is filled with a healthy default.
func Materialize(sparse Chart) Chart {
	byID := make(map[ToothID]ToothCondition, len(sparse))
	for _, tc := range sparse {
		if !tc.Number.Valid() {
			continue
		}
		if _, seen := byID[tc.Number]; seen {
			continue
		}
		byID[tc.Number] = tc
	}

	out := make(Chart, 0, ToothCount)
	for _, id := range AllValidToothIDs() {
		if tc, ok := byID[id]; ok {
			out = append(out, tc.clone())
			continue
		}
		out = append(out, ToothCondition{Number: id, Status: StatusHealthy})
	}
	return out
}

// ValidateChart checks a chart received at an API boundary.
func ValidateChart(c Chart) error {
	seen := make(map[ToothID]bool, len(c))
	for _, tc := range c {
		if !tc.Number.Valid() {
			return fmt.Errorf("invalid tooth number: %d", tc.Number)
		}
		if seen[tc.Number] {
			return fmt.Errorf("duplicate tooth number: %d", tc.Number)
		}
		seen[tc.Number] = true
		if !tc.Status.Valid() {
			return fmt.Errorf("invalid status for tooth %d: %q", tc.Number, tc.Status)
		}
		for _, s := range tc.Sectors {
			if !s.Sector.Valid() {
				return fmt.Errorf("invalid sector for tooth %d: %q", tc.Number, s.Sector)
			}
		}
	}
	return nil
}
