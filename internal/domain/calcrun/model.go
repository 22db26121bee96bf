package calcrun

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/calculation"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/cqlresult"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/measurereport"
)

// Run is a stored batch summary.
type Run struct {
	ID               uuid.UUID          `json:"id"`
	Mode             string             `json:"mode"`
	MeasureID        string             `json:"measure_id,omitempty"`
	Directory        string             `json:"directory"`
	PeriodStart      string             `json:"period_start,omitempty"`
	PeriodEnd        string             `json:"period_end,omitempty"`
	OutputDir        string             `json:"output_dir"`
	Counts           calculation.Counts `json:"counts"`
	PatientListError string             `json:"patient_list_error,omitempty"`
	StartedAt        time.Time          `json:"started_at"`
	FinishedAt       time.Time          `json:"finished_at"`
}

// Result is one stored subject. Population holds the label the subject was
// counted under, including "error".
type Result struct {
	ID           uuid.UUID       `json:"id"`
	RunID        uuid.UUID       `json:"run_id"`
	Seq          int             `json:"seq"`
	Bundle       string          `json:"bundle"`
	PatientID    string          `json:"patient_id,omitempty"`
	Population   string          `json:"population"`
	MeasureScore *float64        `json:"measure_score"`
	Observation  *string         `json:"observation"`
	Error        string          `json:"error,omitempty"`
	OutputPath   string          `json:"output_path,omitempty"`
	Detail       json.RawMessage `json:"detail,omitempty"`
}

// Detail is the part of a subject result kept as a JSON document.
type Detail struct {
	Stratifiers      []measurereport.StratifierResult `json:"stratifiers,omitempty"`
	SupplementalData []measurereport.SupplementalTag  `json:"supplementalData,omitempty"`
	Expression       *cqlresult.Result                `json:"expression,omitempty"`
}

// FromCalculation converts a finished batch into rows. Results keep the
// batch order in Seq.
func FromCalculation(run *calculation.Run) (*Run, []*Result, error) {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("run id: %w", err)
	}

	r := &Run{
		ID:               id,
		Mode:             string(run.Mode),
		MeasureID:        run.MeasureID,
		Directory:        run.Directory,
		PeriodStart:      run.Period.Start,
		PeriodEnd:        run.Period.End,
		OutputDir:        run.OutputDir,
		Counts:           run.Counts,
		PatientListError: run.PatientListError,
		StartedAt:        run.StartedAt,
		FinishedAt:       run.FinishedAt,
	}

	results := make([]*Result, 0, len(run.Results))
	for i := range run.Results {
		sr := &run.Results[i]
		res := &Result{
			ID:           uuid.New(),
			RunID:        id,
			Seq:          i,
			Bundle:       sr.Bundle,
			PatientID:    sr.PatientID,
			Population:   sr.Label(),
			MeasureScore: sr.MeasureScore(),
			Error:        sr.Error,
			OutputPath:   sr.OutputPath,
		}

		d := Detail{Expression: sr.Expression}
		if sr.Report != nil {
			res.Observation = sr.Report.Observation
			d.Stratifiers = sr.Report.Stratifiers
			d.SupplementalData = sr.Report.SupplementalData
		}
		if len(d.Stratifiers) > 0 || len(d.SupplementalData) > 0 || d.Expression != nil {
			res.Detail, err = json.Marshal(d)
			if err != nil {
				return nil, nil, fmt.Errorf("encode detail for %s: %w", sr.Bundle, err)
			}
		}
		results = append(results, res)
	}
	return r, results, nil
}
