package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/measurereport"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/cqllib"
)

// classifyEntry is one line of classify output.
type classifyEntry struct {
	File   string                          `json:"file"`
	Result *measurereport.ClassifiedReport `json:"result,omitempty"`
	Error  string                          `json:"error,omitempty"`
}

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <measure-report.json>...",
		Short: "Classify individual MeasureReport files without a FHIR server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keepReport, _ := cmd.Flags().GetBool("include-report")
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			failed := 0
			for _, path := range args {
				entry := classifyEntry{File: path}
				data, err := os.ReadFile(path)
				if err == nil {
					entry.Result, err = measurereport.ClassifyJSON(data)
				}
				if err != nil {
					failed++
					entry.Error = err.Error()
				} else if !keepReport {
					entry.Result.MeasureReport = nil
				}
				if err := enc.Encode(entry); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d reports could not be classified", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().Bool("include-report", false, "Include the source MeasureReport in the output")
	return cmd
}

func depsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deps <main.cql>",
		Short: "List the CQL files a library includes, directly or transitively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := cqllib.DependentFiles(args[0])
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
}

func translateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate <main.cql>",
		Short: "Translate a CQL library and its includes to ELM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg, cmd.ErrOrStderr())
			outDir, _ := cmd.Flags().GetString("elm-dir")
			asXML, _ := cmd.Flags().GetBool("xml")

			deps, err := cqllib.DependentFiles(args[0])
			if err != nil {
				return err
			}
			paths := append([]string{args[0]}, deps...)

			format, ext := cqllib.FormatELMJSON, ".json"
			if asXML {
				format, ext = cqllib.FormatELMXML, ".xml"
			}
			translator := cqllib.NewTranslator(cfg.TranslatorURL,
				cqllib.WithTranslatorHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
				cqllib.WithTranslatorLogger(logger),
				cqllib.WithTargetFormat(format),
			)
			elms, err := translator.TranslateFiles(cmd.Context(), paths)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create elm directory: %w", err)
			}
			for i, elm := range elms {
				path := filepath.Join(outDir, elmFileName(elm, i)+ext)
				if err := os.WriteFile(path, elm.Content, 0o644); err != nil {
					return fmt.Errorf("write elm: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			logger.Info().Int("libraries", len(elms)).Str("dir", outDir).Msg("translated cql")
			return nil
		},
	}
	cmd.Flags().String("translator-url", "", "cql-translation-service endpoint (default $TRANSLATOR_URL)")
	cmd.Flags().String("elm-dir", "./elm", "Directory the ELM files are written to")
	cmd.Flags().Bool("xml", false, "Request ELM XML instead of JSON")
	return cmd
}

// elmFileName names an ELM document after its library identifier, falling
// back to the part name the translator used.
func elmFileName(elm cqllib.ELM, i int) string {
	if id := elm.LibraryID(); id != "" {
		return id
	}
	if base := filepath.Base(elm.Name); elm.Name != "" && base != "." {
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return fmt.Sprintf("library-%d", i+1)
}
