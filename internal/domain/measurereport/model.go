package measurereport

import (
	"encoding/json"
	"fmt"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/fhir"
)

// PopulationCode is a measure-population code as it appears in
// MeasureReport.group.population.code.
type PopulationCode string

const (
	CodeInitialPopulation PopulationCode = "initial-population"
	CodeNumerator         PopulationCode = "numerator"
	CodeDenominator       PopulationCode = "denominator"
	CodeMeasurePopulation PopulationCode = "measure-population"
)

// Population is the classification label assigned to a subject.
type Population string

const (
	Numerator         Population = "numerator"
	Denominator       Population = "denominator"
	MeasurePopulation Population = "measure-population"
	IPOP              Population = "ipop"
	None              Population = "none"
)

// Populations lists every label in classification priority order, followed
// by None.
var Populations = []Population{Numerator, Denominator, MeasurePopulation, IPOP, None}

// Report is an individual MeasureReport as returned by $evaluate-measure.
// Only the elements needed for classification are decoded; the original
// document is kept in raw so it can be written back out unchanged.
type Report struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id,omitempty"`
	Status       string            `json:"status,omitempty"`
	Type         string            `json:"type,omitempty"`
	Measure      string            `json:"measure,omitempty"`
	Subject      *fhir.Reference   `json:"subject,omitempty"`
	Period       *fhir.Period      `json:"period,omitempty"`
	Group        []ReportGroup     `json:"group"`
	Contained    []json.RawMessage `json:"contained,omitempty"`

	raw json.RawMessage
}

// ReportGroup is one population set of a MeasureReport. A nil Population
// means the element was missing from the document, which is a structural
// defect; an empty non-nil slice means the engine reported no populations.
type ReportGroup struct {
	ID           string                `json:"id,omitempty"`
	Code         *fhir.CodeableConcept `json:"code,omitempty"`
	Population   []ReportPopulation    `json:"population"`
	MeasureScore *MeasureScore         `json:"measureScore,omitempty"`
	Stratifier   []ReportStratifier    `json:"stratifier,omitempty"`
}

// ReportPopulation is a (code, count) pair. A nil Count means the population
// is not reported, which is not the same as a count of zero.
type ReportPopulation struct {
	Code  *fhir.CodeableConcept `json:"code,omitempty"`
	Count *int                  `json:"count,omitempty"`
}

// MeasureScore is the Quantity carried in group.measureScore.
type MeasureScore struct {
	Value *float64 `json:"value,omitempty"`
	Unit  string   `json:"unit,omitempty"`
}

type ReportStratifier struct {
	Code    []fhir.CodeableConcept `json:"code,omitempty"`
	Stratum []ReportStratum        `json:"stratum"`
}

// ReportStratum is classified exactly like a group.
type ReportStratum struct {
	Value        *fhir.CodeableConcept `json:"value,omitempty"`
	Population   []ReportPopulation    `json:"population"`
	MeasureScore *MeasureScore         `json:"measureScore,omitempty"`
}

// AsGroup views the stratum as a group for classification.
func (s *ReportStratum) AsGroup() *ReportGroup {
	return &ReportGroup{Population: s.Population, MeasureScore: s.MeasureScore}
}

// ParseReport decodes a MeasureReport and retains the original bytes.
func ParseReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode measure report: %w", err)
	}
	if r.ResourceType != "MeasureReport" {
		return nil, fmt.Errorf("expected resourceType MeasureReport, got %q", r.ResourceType)
	}
	r.raw = append(json.RawMessage(nil), data...)
	return &r, nil
}

// Raw returns the report as originally received. Reports built in code are
// marshalled on demand.
func (r *Report) Raw() json.RawMessage {
	if r.raw != nil {
		return r.raw
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return data
}

// Classification is the population label and score of one group or stratum.
// The score is copied from the group and never derived from the label.
type Classification struct {
	Population   Population `json:"population"`
	MeasureScore *float64   `json:"measureScore"`
}

// StratifierResult is the classification of a stratifier's first stratum.
type StratifierResult struct {
	Name *string `json:"name"`
	Classification
}

// SupplementalTag is a supplemental data element extracted from a contained
// Observation. Name is the full resource id, including the sde- prefix.
type SupplementalTag struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
	System  string `json:"system,omitempty"`
}

// ClassifiedReport is the per-subject result built from one MeasureReport.
type ClassifiedReport struct {
	Classification
	Stratifiers      []StratifierResult `json:"stratifiers"`
	Observation      *string            `json:"observation"`
	SupplementalData []SupplementalTag  `json:"supplementalData"`
	MeasureReport    json.RawMessage    `json:"measureReport"`
}
