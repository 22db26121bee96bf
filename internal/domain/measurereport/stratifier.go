package measurereport

import "fmt"

// MainGroup returns the first group of the report, which is the one every
// classification is taken from.
func MainGroup(r *Report) (*ReportGroup, error) {
	if r == nil || r.Group == nil {
		return nil, missing("group")
	}
	if len(r.Group) == 0 {
		return nil, &StructuralError{Path: "group", Reason: "report contains no groups"}
	}
	return &r.Group[0], nil
}

// StratifierName returns the first code of the stratifier's first coded
// identifier, or nil when it has none.
func StratifierName(s *ReportStratifier) *string {
	if len(s.Code) == 0 {
		return nil
	}
	code := s.Code[0].FirstCode()
	if code == "" {
		return nil
	}
	return &code
}

// WalkStratifiers classifies the first stratum of every stratifier on the
// main group, in source order. A report without stratifiers yields an empty
// list. Each stratifier is classified on its own; nothing is shared with the
// main group or with siblings.
func WalkStratifiers(r *Report) ([]StratifierResult, error) {
	g, err := MainGroup(r)
	if err != nil {
		return nil, err
	}
	results := make([]StratifierResult, 0, len(g.Stratifier))
	for i := range g.Stratifier {
		s := &g.Stratifier[i]
		path := fmt.Sprintf("group[0].stratifier[%d]", i)
		if len(s.Stratum) == 0 {
			return nil, &StructuralError{Path: path + ".stratum", Reason: "stratifier has no strata"}
		}
		c, err := Classify(s.Stratum[0].AsGroup())
		if err != nil {
			return nil, under(path+".stratum[0]", err)
		}
		results = append(results, StratifierResult{Name: StratifierName(s), Classification: c})
	}
	return results, nil
}
