package measurereport

// ClassifyReport builds the per-subject result for an individual
// MeasureReport: the main group's classification, one classification per
// stratifier, the measure observation, supplemental data and the report
// itself. Structural defects abort this report only.
func ClassifyReport(r *Report) (*ClassifiedReport, error) {
	g, err := MainGroup(r)
	if err != nil {
		return nil, err
	}
	main, err := Classify(g)
	if err != nil {
		return nil, under("group[0]", err)
	}
	strats, err := WalkStratifiers(r)
	if err != nil {
		return nil, err
	}
	return &ClassifiedReport{
		Classification:   main,
		Stratifiers:      strats,
		Observation:      ExtractObservation(r),
		SupplementalData: ExtractSupplementalTags(r),
		MeasureReport:    r.Raw(),
	}, nil
}

// ClassifyJSON parses and classifies a MeasureReport document.
func ClassifyJSON(data []byte) (*ClassifiedReport, error) {
	r, err := ParseReport(data)
	if err != nil {
		return nil, err
	}
	return ClassifyReport(r)
}
