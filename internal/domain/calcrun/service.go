package calcrun

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/calculation"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/measurereport"
)

// ErrInvalidPopulation is returned for an unknown population filter.
var ErrInvalidPopulation = errors.New("invalid population")

// Service is the results store. It implements calculation.Recorder.
type Service struct {
	runs   Repository
	logger zerolog.Logger
}

func NewService(runs Repository, logger zerolog.Logger) *Service {
	return &Service{runs: runs, logger: logger}
}

// Record stores a finished batch.
func (s *Service) Record(ctx context.Context, run *calculation.Run) error {
	r, results, err := FromCalculation(run)
	if err != nil {
		return err
	}
	if err := s.runs.Create(ctx, r, results); err != nil {
		return err
	}
	s.logger.Info().Str("run_id", r.ID.String()).Int("results", len(results)).Msg("recorded run")
	return nil
}

func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	return s.runs.GetByID(ctx, id)
}

func (s *Service) ListRuns(ctx context.Context, limit, offset int) ([]*Run, int, error) {
	return s.runs.List(ctx, limit, offset)
}

// ListResults returns a page of a run's results, optionally restricted to one
// population label.
func (s *Service) ListResults(ctx context.Context, runID uuid.UUID, population string, limit, offset int) ([]*Result, int, error) {
	if population != "" && !validPopulation(population) {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidPopulation, population)
	}
	if _, err := s.runs.GetByID(ctx, runID); err != nil {
		return nil, 0, err
	}
	return s.runs.ListResults(ctx, runID, population, limit, offset)
}

func validPopulation(p string) bool {
	if p == calculation.ErrorLabel {
		return true
	}
	for _, known := range measurereport.Populations {
		if p == string(known) {
			return true
		}
	}
	return false
}
