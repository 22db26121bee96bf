package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/calculation"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/evalclient"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/fhir"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate a Measure for every patient bundle in a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, calculation.ModeMeasure)
		},
	}
	batchFlags(cmd)
	cmd.MarkFlagRequired("measure-id")
	return cmd
}

func cqlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cql",
		Short: "Evaluate a CQL library with $cql for every patient bundle in a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, calculation.ModeCQL)
		},
	}
	batchFlags(cmd)
	cmd.Flags().StringP("cql", "c", "", "Path to the main CQL library")
	cmd.MarkFlagRequired("cql")
	return cmd
}

func batchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("directory", "d", "", "Directory of patient bundles")
	f.StringP("measure-id", "m", "", "Measure to evaluate")
	f.StringP("url", "u", "", "FHIR server base URL (default $FHIR_BASE_URL)")
	f.StringP("period-start", "s", "", "Measurement period start, yyyy-mm-dd (default $PERIOD_START)")
	f.StringP("period-end", "e", "", "Measurement period end, yyyy-mm-dd (default $PERIOD_END)")
	f.StringP("output-dir", "o", "", "Root directory for results (default $OUTPUT_DIR)")
	f.Int("concurrency", 0, "Bundles evaluated at once (default $CONCURRENCY)")
	f.Bool("patient-list", false, "Also fetch the patient-list MeasureReport")
	cmd.MarkFlagRequired("directory")
}

func runBatch(cmd *cobra.Command, mode calculation.Mode) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := cmd.Flags()
	directory, _ := flags.GetString("directory")
	measureID, _ := flags.GetString("measure-id")
	patientList, _ := flags.GetBool("patient-list")
	opts := calculation.Options{
		Mode:        mode,
		Directory:   directory,
		OutputDir:   cfg.OutputDir,
		MeasureID:   measureID,
		Period:      fhir.Period{Start: cfg.PeriodStart, End: cfg.PeriodEnd},
		Concurrency: cfg.Concurrency,
		PatientList: patientList,
	}
	if mode == calculation.ModeCQL {
		path, _ := flags.GetString("cql")
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read cql library: %w", err)
		}
		opts.CQL = string(src)
	}

	client, err := evalclient.New(cfg.FHIRBaseURL,
		evalclient.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		evalclient.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		evalclient.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	var svcOpts []calculation.ServiceOption
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		svcOpts = append(svcOpts, calculation.WithRecorder(st.runs))
	}

	run, err := calculation.NewService(client, logger, svcOpts...).Run(ctx, opts)
	if err != nil {
		return err
	}
	return printSummary(cmd.OutOrStdout(), run)
}

func printSummary(w io.Writer, run *calculation.Run) error {
	rows := []struct {
		label string
		n     int
	}{
		{"numerator", run.Counts.Numerator},
		{"denominator", run.Counts.Denominator},
		{"measure-population", run.Counts.MeasurePopulation},
		{"ipop", run.Counts.IPOP},
		{"none", run.Counts.None},
		{"error", run.Counts.Error},
		{"total", run.Counts.Total},
	}
	if _, err := fmt.Fprintf(w, "Run %s wrote results to %s\n", run.ID, run.OutputDir); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%-20s %d\n", r.label, r.n); err != nil {
			return err
		}
	}
	if run.PatientListError != "" {
		if _, err := fmt.Fprintf(w, "patient-list report failed: %s\n", run.PatientListError); err != nil {
			return err
		}
	}
	return nil
}
