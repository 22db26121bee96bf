package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "fhir-bundle-calculator",
		Short:        "Calculate FHIR quality measures over directories of patient bundles",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().Bool("pretty", false, "Human-readable console logs")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(cqlCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(depsCmd())
	rootCmd.AddCommand(translateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}

// newLogger builds the process logger. Output is JSON unless the
// environment is development or --pretty is set.
func newLogger(cmd *cobra.Command, cfg *config.Config, out io.Writer) zerolog.Logger {
	pretty, _ := cmd.Flags().GetBool("pretty")
	if pretty || cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// stringOverrides maps command flags onto the config fields they replace.
func stringOverrides(cfg *config.Config) map[string]*string {
	return map[string]*string{
		"url":            &cfg.FHIRBaseURL,
		"translator-url": &cfg.TranslatorURL,
		"period-start":   &cfg.PeriodStart,
		"period-end":     &cfg.PeriodEnd,
		"output-dir":     &cfg.OutputDir,
		"port":           &cfg.Port,
	}
}

// loadConfig reads the environment, applies any flags the user set on cmd
// and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	for name, dst := range stringOverrides(cfg) {
		if f := flags.Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	if f := flags.Lookup("concurrency"); f != nil && f.Changed {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
