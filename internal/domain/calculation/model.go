package calculation

import (
	"time"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/cqlresult"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/measurereport"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/fhir"
)

// Mode selects how subjects are evaluated.
type Mode string

const (
	// ModeMeasure evaluates a Measure with $evaluate-measure.
	ModeMeasure Mode = "measure"
	// ModeCQL evaluates a CQL library with $cql.
	ModeCQL Mode = "cql"
)

// ErrorLabel is the bucket a subject is counted in when its evaluation
// failed.
const ErrorLabel = "error"

// Options describes one batch.
type Options struct {
	Mode        Mode
	Directory   string
	OutputDir   string
	MeasureID   string
	CQL         string
	Period      fhir.Period
	Concurrency int

	// PatientList also fetches the patient-list MeasureReport once every
	// subject has been evaluated. Requires MeasureID.
	PatientList bool
}

// SubjectResult is the outcome for one patient bundle. Population is empty
// when Error is set.
type SubjectResult struct {
	Bundle     string                          `json:"bundle"`
	File       string                          `json:"file"`
	PatientID  string                          `json:"patientId,omitempty"`
	Population measurereport.Population        `json:"population,omitempty"`
	Report     *measurereport.ClassifiedReport `json:"report,omitempty"`
	Expression *cqlresult.Result               `json:"expression,omitempty"`
	OutputPath string                          `json:"outputPath,omitempty"`
	Error      string                          `json:"error,omitempty"`
}

// Label returns the population label, or ErrorLabel for a failed subject.
func (r *SubjectResult) Label() string {
	if r.Error != "" {
		return ErrorLabel
	}
	return string(r.Population)
}

// MeasureScore returns the main group score of a MeasureReport result.
func (r *SubjectResult) MeasureScore() *float64 {
	if r.Report == nil {
		return nil
	}
	return r.Report.MeasureScore
}

// Counts tallies subjects per population.
type Counts struct {
	Numerator         int `json:"numerator"`
	Denominator       int `json:"denominator"`
	MeasurePopulation int `json:"measurePopulation"`
	IPOP              int `json:"ipop"`
	None              int `json:"none"`
	Error             int `json:"error"`
	Total             int `json:"total"`
}

// Add counts r in its bucket and in the total.
func (c *Counts) Add(r *SubjectResult) {
	c.Total++
	if r.Error != "" {
		c.Error++
		return
	}
	switch r.Population {
	case measurereport.Numerator:
		c.Numerator++
	case measurereport.Denominator:
		c.Denominator++
	case measurereport.MeasurePopulation:
		c.MeasurePopulation++
	case measurereport.IPOP:
		c.IPOP++
	default:
		c.None++
	}
}

// Run is a finished batch.
type Run struct {
	ID               string          `json:"id"`
	Mode             Mode            `json:"mode"`
	MeasureID        string          `json:"measureId,omitempty"`
	Directory        string          `json:"directory"`
	Period           fhir.Period     `json:"period"`
	StartedAt        time.Time       `json:"startedAt"`
	FinishedAt       time.Time       `json:"finishedAt"`
	OutputDir        string          `json:"outputDir"`
	Counts           Counts          `json:"counts"`
	Results          []SubjectResult `json:"results"`
	PatientListError string          `json:"patientListError,omitempty"`
}
