package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	started := time.Date(2020, 3, 4, 15, 6, 7, 0, time.UTC)
	w, err := NewWriter(t.TempDir(), started, []string{"numerator", "ipop"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return w
}

func TestNewWriter_Layout(t *testing.T) {
	w := newTestWriter(t)
	if got := filepath.Base(w.Dir()); got != "results-2020-03-04-T150607" {
		t.Errorf("unexpected run directory %q", got)
	}
	for _, p := range []string{"numerator", "ipop"} {
		info, err := os.Stat(filepath.Join(w.Dir(), p))
		if err != nil || !info.IsDir() {
			t.Errorf("expected population directory %s: %v", p, err)
		}
	}
}

func TestCopyBundle(t *testing.T) {
	w := newTestWriter(t)
	path, err := w.CopyBundle("numerator", "nested/patient-1.json", []byte(`{"resourceType":"Bundle"}`))
	if err != nil {
		t.Fatalf("CopyBundle: %v", err)
	}
	if path != filepath.Join(w.Dir(), "numerator", "patient-1.json") {
		t.Errorf("unexpected path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(data) != `{"resourceType":"Bundle"}` {
		t.Errorf("copy differs from source: %s", data)
	}
}

func TestCopyBundle_UnknownPopulation(t *testing.T) {
	w := newTestWriter(t)
	if _, err := w.CopyBundle("denominator", "p.json", []byte("{}")); err == nil {
		t.Error("expected error for a population without a directory")
	}
}

func TestEncodeCSV(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeCSV(&buf, Table{
		Columns: []string{"bundle", "population", "error"},
		Rows: []map[string]string{
			{"bundle": "a", "population": "numerator"},
			{"bundle": "b, with comma", "error": "boom", "ignored": "x"},
		},
	})
	if err != nil {
		t.Fatalf("EncodeCSV: %v", err)
	}
	want := "bundle,population,error\na,numerator,\n\"b, with comma\",,boom\n"
	if buf.String() != want {
		t.Errorf("unexpected csv:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteCSVAndJSON(t *testing.T) {
	w := newTestWriter(t)
	csvPath, err := w.WriteCSV("results.csv", Table{Columns: []string{"bundle"}, Rows: []map[string]string{{"bundle": "a"}}})
	if err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	data, _ := os.ReadFile(csvPath)
	if string(data) != "bundle\na\n" {
		t.Errorf("unexpected csv %q", data)
	}

	jsonPath, err := w.WriteJSON("results.json", map[string]int{"total": 2})
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, _ = os.ReadFile(jsonPath)
	var got map[string]int
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if got["total"] != 2 {
		t.Errorf("unexpected json %s", data)
	}
}
