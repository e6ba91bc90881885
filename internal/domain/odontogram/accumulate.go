package odontogram

import "sort"

// VisitChart is the part of a prior visit the accumulation reads.
type VisitChart struct {
	Finalized bool
	Current   Chart
}

// History is the cumulative chart of all prior finalized visits.
type History struct {
	Chart             Chart     `json:"historicalChart"`
	ExtractedToothIDs []ToothID `json:"extractedToothIds"`
}

// Accumulate folds the current charts of finalized visits into one sparse
// chart. Status precedence is extraction, then missing, then the first
// non-healthy status seen, then healthy. Crown and prosthesis flags are
// sticky. Sectors are unioned and the first state seen for a sector is kept.
func Accumulate(visits []VisitChart) History {
	acc := make(map[ToothID]*ToothCondition)
	for _, v := range visits {
		if !v.Finalized {
			continue
		}
		for _, tc := range v.Current {
			if !tc.Number.Valid() {
				continue
			}
			cur, ok := acc[tc.Number]
			if !ok {
				seed := tc.clone()
				acc[tc.Number] = &seed
				continue
			}
			mergeInto(cur, tc)
		}
	}

	chart := make(Chart, 0, len(acc))
	for _, tc := range acc {
		chart = append(chart, *tc)
	}
	sortByLayout(chart)

	extracted := []ToothID{}
	for id, tc := range acc {
		if tc.Status == StatusExtraction || tc.Status == StatusMissing {
			extracted = append(extracted, id)
		}
	}
	sort.Slice(extracted, func(i, j int) bool { return extracted[i] < extracted[j] })

	return History{Chart: chart, ExtractedToothIDs: extracted}
}

func mergeInto(cur *ToothCondition, in ToothCondition) {
	switch {
	case in.Status == StatusExtraction:
		cur.Status = StatusExtraction
	case in.Status == StatusMissing:
		if cur.Status != StatusExtraction {
			cur.Status = StatusMissing
		}
	case in.Status != StatusHealthy && in.Status != "" && (cur.Status == StatusHealthy || cur.Status == ""):
		cur.Status = in.Status
	}

	for _, s := range in.Sectors {
		if _, ok := cur.Sector(s.Sector); !ok {
			cur.Sectors = append(cur.Sectors, s)
		}
	}

	cur.HasCrown = cur.HasCrown || in.HasCrown
	cur.HasProsthesis = cur.HasProsthesis || in.HasProsthesis
}

func sortByLayout(c Chart) {
	sort.SliceStable(c, func(i, j int) bool {
		a, _ := LayoutIndex(c[i].Number)
		b, _ := LayoutIndex(c[j].Number)
		return a < b
	})
}

// SeedChart returns a full chart for a new visit in which every previously
// extracted or missing tooth is marked missing.
func SeedChart(extracted []ToothID) Chart {
	sparse := make(Chart, 0, len(extracted))
	for _, id := range extracted {
		sparse = append(sparse, ToothCondition{Number: id, Status: StatusMissing})
	}
	return Materialize(sparse)
}
