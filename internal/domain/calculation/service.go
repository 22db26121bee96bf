package calculation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/cqlresult"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/measurereport"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/fhir"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/output"
)

// ErrNoBundles is returned when the input directory holds no .json files.
var ErrNoBundles = errors.New("no bundles found")

// Output file names inside a run directory.
const (
	ResultsCSV        = "results.csv"
	ResultsJSON       = "results.json"
	PatientListReport = "measure-report.json"
)

// Evaluator is the FHIR server a batch runs against.
type Evaluator interface {
	PostBundle(ctx context.Context, bundle []byte) (string, error)
	EvaluateMeasure(ctx context.Context, measureID, patientID string, period fhir.Period) ([]byte, error)
	EvaluatePatientList(ctx context.Context, measureID string, period fhir.Period) ([]byte, error)
	EvaluateCQL(ctx context.Context, cql, patientID string, period fhir.Period) ([]byte, error)
}

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, run *Run) error
}

type ServiceOption func(*Service)

// WithRecorder stores every finished run with r.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides the time source used for run timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

type Service struct {
	eval     Evaluator
	recorder Recorder
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(eval Evaluator, logger zerolog.Logger, opts ...ServiceOption) *Service {
	s := &Service{eval: eval, logger: logger, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (o *Options) validate() error {
	switch o.Mode {
	case ModeMeasure:
		if o.MeasureID == "" {
			return fmt.Errorf("measure id is required")
		}
	case ModeCQL:
		if strings.TrimSpace(o.CQL) == "" {
			return fmt.Errorf("cql source is required")
		}
		if o.PatientList && o.MeasureID == "" {
			return fmt.Errorf("a patient-list report requires a measure id")
		}
	default:
		return fmt.Errorf("unknown mode %q", o.Mode)
	}
	if o.Directory == "" {
		return fmt.Errorf("bundle directory is required")
	}
	if o.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	return nil
}

// ListBundles returns the .json files directly inside dir, sorted by name.
func ListBundles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read bundle directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoBundles, dir)
	}
	sort.Strings(files)
	return files, nil
}

// Run evaluates every bundle in opts.Directory and writes the results. A
// subject that fails is recorded with its error and the batch carries on;
// Run itself fails only for problems with the batch as a whole.
func (s *Service) Run(ctx context.Context, opts Options) (*Run, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	files, err := ListBundles(opts.Directory)
	if err != nil {
		return nil, err
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	run := &Run{
		ID:        uuid.New().String(),
		Mode:      opts.Mode,
		MeasureID: opts.MeasureID,
		Directory: opts.Directory,
		Period:    opts.Period,
		StartedAt: s.now().UTC(),
	}
	log := s.logger.With().Str("run_id", run.ID).Str("mode", string(opts.Mode)).Logger()

	dirs := make([]string, 0, len(measurereport.Populations))
	for _, p := range measurereport.Populations {
		if p != measurereport.None {
			dirs = append(dirs, string(p))
		}
	}
	w, err := output.NewWriter(opts.OutputDir, run.StartedAt, dirs, log)
	if err != nil {
		return nil, err
	}
	run.OutputDir = w.Dir()

	log.Info().Int("bundles", len(files)).Int("concurrency", concurrency).Msg("starting calculation")

	results := make([]SubjectResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			results[i] = s.evaluate(gctx, &opts, w, file, log)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("calculation interrupted: %w", err)
	}

	run.Results = results
	for i := range results {
		run.Counts.Add(&results[i])
	}

	if _, err := w.WriteCSV(ResultsCSV, BuildTable(opts.Mode, results)); err != nil {
		return nil, err
	}
	if _, err := w.WriteJSON(ResultsJSON, results); err != nil {
		return nil, err
	}
	log.Info().Str("dir", w.Dir()).Msg("wrote results")

	if opts.PatientList {
		if err := s.patientList(ctx, &opts, w, log); err != nil {
			log.Error().Err(err).Msg("patient-list report failed")
			run.PatientListError = err.Error()
		}
	}

	run.FinishedAt = s.now().UTC()
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, run); err != nil {
			return run, fmt.Errorf("record run: %w", err)
		}
	}

	log.Info().
		Int("numerator", run.Counts.Numerator).
		Int("denominator", run.Counts.Denominator).
		Int("measure_population", run.Counts.MeasurePopulation).
		Int("ipop", run.Counts.IPOP).
		Int("none", run.Counts.None).
		Int("error", run.Counts.Error).
		Int("total", run.Counts.Total).
		Msg("final counts")
	return run, nil
}

func (s *Service) evaluate(ctx context.Context, opts *Options, w *output.Writer, file string, log zerolog.Logger) SubjectResult {
	res := SubjectResult{
		Bundle: strings.TrimSuffix(filepath.Base(file), ".json"),
		File:   file,
	}
	log = log.With().Str("bundle", res.Bundle).Logger()

	fail := func(msg string, err error) SubjectResult {
		log.Error().Err(err).Msg(msg)
		res.Error = err.Error()
		res.Population = ""
		return res
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fail("read bundle failed", fmt.Errorf("read bundle: %w", err))
	}
	if err := s.classify(ctx, opts, data, &res, log); err != nil {
		return fail("evaluation failed", err)
	}

	if res.Population == measurereport.None {
		log.Info().Str("patient", res.PatientID).Msg("no population results")
		return res
	}
	res.OutputPath, err = w.CopyBundle(string(res.Population), filepath.Base(file), data)
	if err != nil {
		return fail("copy bundle failed", err)
	}
	log.Info().Str("patient", res.PatientID).Str("population", string(res.Population)).Msg("classified")
	return res
}

func (s *Service) classify(ctx context.Context, opts *Options, data []byte, res *SubjectResult, log zerolog.Logger) error {
	if _, err := fhir.ParseBundle(data); err != nil {
		return err
	}

	var err error
	log.Debug().Msg("posting bundle")
	res.PatientID, err = s.eval.PostBundle(ctx, data)
	if err != nil {
		return fmt.Errorf("post bundle: %w", err)
	}
	log.Debug().Str("patient", res.PatientID).Msg("found patient id")

	switch opts.Mode {
	case ModeCQL:
		body, err := s.eval.EvaluateCQL(ctx, opts.CQL, res.PatientID, opts.Period)
		if err != nil {
			return fmt.Errorf("evaluate cql: %w", err)
		}
		rs, err := cqlresult.ParseResultSet(body)
		if err != nil {
			return fmt.Errorf("cql response: %w", err)
		}
		cr, err := cqlresult.Classify(cqlresult.Interpret(rs))
		if err != nil {
			return err
		}
		res.Expression = &cr.Result
		res.Population = cr.Population
		if cr.Error != nil {
			log.Warn().Str("error", *cr.Error).Msg("cql define reported an error")
		}
	default:
		body, err := s.eval.EvaluateMeasure(ctx, opts.MeasureID, res.PatientID, opts.Period)
		if err != nil {
			return fmt.Errorf("evaluate measure: %w", err)
		}
		report, err := measurereport.ClassifyJSON(body)
		if err != nil {
			return err
		}
		res.Report = report
		res.Population = report.Population
	}
	return nil
}

func (s *Service) patientList(ctx context.Context, opts *Options, w *output.Writer, log zerolog.Logger) error {
	log.Info().Str("measure", opts.MeasureID).Msg("generating patient-list MeasureReport")
	data, err := s.eval.EvaluatePatientList(ctx, opts.MeasureID, opts.Period)
	if err != nil {
		return err
	}
	path, err := w.WriteFile(PatientListReport, data)
	if err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("wrote patient-list MeasureReport")
	return nil
}
