package task

import "time"

// FilterOptions re-filters a finished task's records without re-running
// the research. Ages are in days; MaxAgeDays == 0 means no upper bound.
// MinPerKeyword drops every keyword group that produced fewer than that
// many in-window records.
type FilterOptions struct {
	MinAgeDays    int `json:"min_age_days"`
	MaxAgeDays    int `json:"max_age_days"`
	MinPerKeyword int `json:"min_per_keyword"`
}

// Filter applies opts to records, evaluated at now. Records keep their
// original order within each surviving keyword group.
func Filter(records []Record, opts FilterOptions, now time.Time) []Record {
	crit := Criteria{MinAgeDays: opts.MinAgeDays, MaxAgeDays: opts.MaxAgeDays}

	// Group in first-seen keyword order so output stays stable.
	var order []string
	groups := make(map[string][]Record)
	for _, r := range records {
		if !crit.Matches(r, now) {
			continue
		}
		if _, seen := groups[r.Keyword]; !seen {
			order = append(order, r.Keyword)
		}
		groups[r.Keyword] = append(groups[r.Keyword], r)
	}

	out := make([]Record, 0, len(records))
	for _, kw := range order {
		g := groups[kw]
		if opts.MinPerKeyword > 0 && len(g) < opts.MinPerKeyword {
			continue
		}
		out = append(out, g...)
	}
	return out
}
