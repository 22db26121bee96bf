package measurereport

// priority is the order in which populations are checked. Each population is
// a refinement of the one after it, so the first positive count wins.
var priority = []struct {
	code  PopulationCode
	label Population
}{
	{CodeNumerator, Numerator},
	{CodeDenominator, Denominator},
	{CodeMeasurePopulation, MeasurePopulation},
	{CodeInitialPopulation, IPOP},
}

// Classify labels g with the highest-priority population whose count is
// greater than zero, or None. The score is attached from the group as is.
func Classify(g *ReportGroup) (Classification, error) {
	label := None
	for _, p := range priority {
		n, err := ExtractCount(g, p.code)
		if err != nil {
			return Classification{}, err
		}
		if n != nil && *n > 0 {
			label = p.label
			break
		}
	}
	return Classification{Population: label, MeasureScore: ExtractScore(g)}, nil
}
