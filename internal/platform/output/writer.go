// Package output lays out the files of a calculation run: a timestamped
// results directory with one subdirectory per population holding copies of
// the bundles classified into it, plus CSV and JSON result files.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// DirTimeFormat is the timestamp layout of a run directory name.
const DirTimeFormat = "2006-01-02-T150405"

// Table is a set of rows written as CSV. Cells missing from a row are
// written empty.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Writer writes into one run directory. CopyBundle may be called from
// several goroutines at once.
type Writer struct {
	dir    string
	logger zerolog.Logger
}

// NewWriter creates <root>/results-<timestamp> and one subdirectory for
// each name in populations.
func NewWriter(root string, started time.Time, populations []string, logger zerolog.Logger) (*Writer, error) {
	dir := filepath.Join(root, "results-"+started.Format(DirTimeFormat))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}
	for _, p := range populations {
		if err := os.MkdirAll(filepath.Join(dir, p), 0o755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", p, err)
		}
	}
	logger.Debug().Str("dir", dir).Msg("created results directory")
	return &Writer{dir: dir, logger: logger}, nil
}

// Dir returns the run directory.
func (w *Writer) Dir() string {
	return w.dir
}

// CopyBundle writes data to <dir>/<population>/<name> and returns the path.
func (w *Writer) CopyBundle(population, name string, data []byte) (string, error) {
	path := filepath.Join(w.dir, population, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("copy bundle %s: %w", name, err)
	}
	return path, nil
}

// WriteCSV writes t to <dir>/<name>.
func (w *Writer) WriteCSV(name string, t Table) (string, error) {
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()
	if err := EncodeCSV(f, t); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, f.Close()
}

// EncodeCSV writes the header and rows of t.
func EncodeCSV(out io.Writer, t Table) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			record[i] = row[col]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes v as indented JSON to <dir>/<name>.
func (w *Writer) WriteJSON(name string, v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	return w.WriteFile(name, data)
}

// WriteFile writes data unchanged to <dir>/<name>.
func (w *Writer) WriteFile(name string, data []byte) (string, error) {
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}
