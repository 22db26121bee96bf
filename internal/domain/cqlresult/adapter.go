package cqlresult

import (
	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/measurereport"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/fhir"
)

const measurePopulationSystem = "http://terminology.hl7.org/CodeSystem/measure-population"

// ClassifiedResult pairs an interpreted result with its population label.
type ClassifiedResult struct {
	Result
	measurereport.Classification
}

// ToGroup presents an interpreted result as a MeasureReport group so it can
// go through the same classifier as a structured report. Each reported
// membership becomes a population with count 1 or 0, narrowed by the
// populations it refines. An errored result yields a group without
// populations.
func ToGroup(r *Result) *measurereport.ReportGroup {
	g := &measurereport.ReportGroup{Population: []measurereport.ReportPopulation{}}
	if r == nil || r.Error != nil {
		return g
	}
	ipop, denom, numer := r.Refined()
	add := func(code measurereport.PopulationCode, reported *bool, member bool) {
		if reported == nil {
			return
		}
		n := 0
		if member {
			n = 1
		}
		g.Population = append(g.Population, measurereport.ReportPopulation{
			Code:  codeConcept(code),
			Count: &n,
		})
	}
	add(measurereport.CodeInitialPopulation, r.InitialPopulation, ipop)
	add(measurereport.CodeDenominator, r.Denominator, denom)
	add(measurereport.CodeNumerator, r.Numerator, numer)
	return g
}

// Classify labels r with the shared population classifier.
func Classify(r *Result) (*ClassifiedResult, error) {
	c, err := measurereport.Classify(ToGroup(r))
	if err != nil {
		return nil, err
	}
	out := &ClassifiedResult{Classification: c}
	if r != nil {
		out.Result = *r
	}
	return out, nil
}

func codeConcept(code measurereport.PopulationCode) *fhir.CodeableConcept {
	return &fhir.CodeableConcept{Coding: []fhir.Coding{{
		System: measurePopulationSystem,
		Code:   string(code),
	}}}
}
