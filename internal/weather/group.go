package weather

// DayGroup holds the observations of one local calendar date in input order.
type DayGroup struct {
	Date         CivilDate
	Observations []Observation
}

// GroupByDay buckets observations by their date in the reference zone.
// Groups appear in the order their date is first seen.
func GroupByDay(observations []Observation) ([]DayGroup, error) {
	groups := make([]DayGroup, 0)
	index := make(map[CivilDate]int)

	for i, o := range observations {
		ts, err := ParseTimestamp(o.Timestamp)
		if err != nil {
			return nil, &MalformedTimestampError{Index: i, Timestamp: o.Timestamp, Err: err}
		}

		day := CivilDateOf(ts)
		pos, ok := index[day]
		if !ok {
			pos = len(groups)
			index[day] = pos
			groups = append(groups, DayGroup{Date: day})
		}
		groups[pos].Observations = append(groups[pos].Observations, o)
	}

	return groups, nil
}
