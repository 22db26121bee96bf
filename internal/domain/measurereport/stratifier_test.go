package measurereport

import (
	"errors"
	"testing"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/fhir"
)

func TestWalkStratifiers(t *testing.T) {
	r := loadReport(t, "stratifier-measure-report.json")
	got, err := WalkStratifiers(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 stratifier results, got %d", len(got))
	}

	if got[0].Name == nil || *got[0].Name != "stratifier-0" {
		t.Errorf("expected name stratifier-0, got %v", got[0].Name)
	}
	if got[0].Population != Numerator || *got[0].MeasureScore != 1 {
		t.Errorf("expected {numerator 1}, got {%s %v}", got[0].Population, *got[0].MeasureScore)
	}

	if got[1].Name == nil || *got[1].Name != "stratifier-1" {
		t.Errorf("expected name stratifier-1, got %v", got[1].Name)
	}
	if got[1].Population != Denominator || *got[1].MeasureScore != 0 {
		t.Errorf("expected {denominator 0}, got {%s %v}", got[1].Population, *got[1].MeasureScore)
	}
}

func TestWalkStratifiers_IndependentOfMainGroup(t *testing.T) {
	r := loadReport(t, "stratifier-measure-report.json")

	// Whatever the main group says, strata keep their own results.
	for _, main := range []*ReportGroup{group(1, 1, 1, floatPtr(1)), group(0, 0, 0, nil)} {
		r.Group[0].Population = main.Population
		r.Group[0].MeasureScore = main.MeasureScore
		got, err := WalkStratifiers(r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got[0].Population != Numerator || got[1].Population != Denominator {
			t.Errorf("stratifier results changed with main group: %s, %s", got[0].Population, got[1].Population)
		}
	}
}

func TestWalkStratifiers_None(t *testing.T) {
	r := loadReport(t, "numerator-measure-report.json")
	got, err := WalkStratifiers(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", got)
	}
}

func TestWalkStratifiers_OnlyFirstStratum(t *testing.T) {
	r := &Report{Group: []ReportGroup{{
		Population: []ReportPopulation{},
		Stratifier: []ReportStratifier{{
			Code: []fhir.CodeableConcept{{Coding: []fhir.Coding{{Code: "age"}}}},
			Stratum: []ReportStratum{
				{Population: []ReportPopulation{pop(CodeInitialPopulation, intPtr(1))}},
				{Population: []ReportPopulation{pop(CodeNumerator, intPtr(1))}},
			},
		}},
	}}}
	got, err := WalkStratifiers(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Population != IPOP {
		t.Errorf("expected ipop from first stratum, got %s", got[0].Population)
	}
}

func TestWalkStratifiers_NoName(t *testing.T) {
	r := &Report{Group: []ReportGroup{{
		Population: []ReportPopulation{},
		Stratifier: []ReportStratifier{
			{Stratum: []ReportStratum{{Population: []ReportPopulation{}}}},
			{Code: []fhir.CodeableConcept{{Text: "no coding"}}, Stratum: []ReportStratum{{Population: []ReportPopulation{}}}},
		},
	}}}
	got, err := WalkStratifiers(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, s := range got {
		if s.Name != nil {
			t.Errorf("stratifier %d: expected nil name, got %q", i, *s.Name)
		}
		if s.Population != None {
			t.Errorf("stratifier %d: expected none, got %s", i, s.Population)
		}
	}
}

func TestWalkStratifiers_EmptyStratum(t *testing.T) {
	r := &Report{Group: []ReportGroup{{
		Population: []ReportPopulation{},
		Stratifier: []ReportStratifier{{Stratum: []ReportStratum{}}},
	}}}
	_, err := WalkStratifiers(r)
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
	if se.Path != "group[0].stratifier[0].stratum" {
		t.Errorf("unexpected path %q", se.Path)
	}
}

func TestWalkStratifiers_StratumWithoutPopulation(t *testing.T) {
	r := &Report{Group: []ReportGroup{{
		Population: []ReportPopulation{},
		Stratifier: []ReportStratifier{
			{Stratum: []ReportStratum{{Population: []ReportPopulation{}}}},
			{Stratum: []ReportStratum{{}}},
		},
	}}}
	_, err := WalkStratifiers(r)
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
	if se.Path != "group[0].stratifier[1].stratum[0].population" {
		t.Errorf("unexpected path %q", se.Path)
	}
}

func TestMainGroup_Missing(t *testing.T) {
	var se *StructuralError
	if _, err := MainGroup(&Report{}); !errors.As(err, &se) || se.Path != "group" {
		t.Errorf("expected StructuralError at group, got %v", err)
	}
	if _, err := MainGroup(&Report{Group: []ReportGroup{}}); !errors.As(err, &se) {
		t.Errorf("expected StructuralError for empty group list, got %v", err)
	}
}
