package weather

import "sort"

// SortDays returns a copy of days ordered by date, oldest first.
// Entries with equal dates keep their relative order.
func SortDays(days []DaySummary) []DaySummary {
	out := make([]DaySummary, len(days))
	copy(out, days)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Run turns raw observations into chronologically ordered day summaries.
// It holds no state; the same input always yields the same output.
func Run(observations []Observation) ([]DaySummary, error) {
	groups, err := GroupByDay(observations)
	if err != nil {
		return nil, err
	}

	days := make([]DaySummary, 0, len(groups))
	for _, g := range groups {
		summary, err := AggregateDay(g.Observations)
		if err != nil {
			return nil, err
		}
		days = append(days, summary)
	}

	return SortDays(days), nil
}
