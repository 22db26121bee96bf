package measurereport

// ExtractCount returns the count reported for code in g. The result is nil
// when no population with that code exists, so callers can tell "not
// reported" apart from a count of zero. A group without a population element
// is a StructuralError.
func ExtractCount(g *ReportGroup, code PopulationCode) (*int, error) {
	if g == nil || g.Population == nil {
		return nil, missing("population")
	}
	for _, p := range g.Population {
		if p.Code.HasCode(string(code)) {
			if p.Count == nil {
				return nil, nil
			}
			n := *p.Count
			return &n, nil
		}
	}
	return nil, nil
}

// ExtractScore returns the group's measureScore.value untouched, or nil.
func ExtractScore(g *ReportGroup) *float64 {
	if g == nil || g.MeasureScore == nil || g.MeasureScore.Value == nil {
		return nil
	}
	v := *g.MeasureScore.Value
	return &v
}
