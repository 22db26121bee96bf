package measurereport

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func strPtr(s string) *string { return &s }

func TestClassifyReport_Stratified(t *testing.T) {
	got, err := ClassifyReport(loadReport(t, "stratifier-measure-report.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &ClassifiedReport{
		Classification: Classification{Population: Denominator, MeasureScore: floatPtr(0)},
		Stratifiers: []StratifierResult{
			{Name: strPtr("stratifier-0"), Classification: Classification{Population: Numerator, MeasureScore: floatPtr(1)}},
			{Name: strPtr("stratifier-1"), Classification: Classification{Population: Denominator, MeasureScore: floatPtr(0)}},
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(ClassifiedReport{}, "MeasureReport")); diff != "" {
		t.Errorf("classified report mismatch (-want +got):\n%s", diff)
	}
	if len(got.MeasureReport) == 0 {
		t.Error("expected the original report to be attached")
	}
}

func TestClassifyReport_ContinuousVariable(t *testing.T) {
	got, err := ClassifyReport(loadReport(t, "cv-measure-report.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &ClassifiedReport{
		Classification: Classification{Population: MeasurePopulation},
		Stratifiers:    []StratifierResult{},
		Observation:    strPtr("45.0 min"),
		SupplementalData: []SupplementalTag{
			{Name: "sde-sex", Code: "F", Display: "Female", System: "http://hl7.org/fhir/administrative-gender"},
			{Name: "sde-payer", Code: "1"},
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(ClassifiedReport{}, "MeasureReport")); diff != "" {
		t.Errorf("classified report mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyReport_KeepsOriginalBytes(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "numerator-measure-report.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	got, err := ClassifyJSON(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got.MeasureReport) != string(data) {
		t.Error("expected the report to be attached byte for byte")
	}
}

func TestClassifyReport_StructuralPath(t *testing.T) {
	_, err := ClassifyJSON([]byte(`{"resourceType":"MeasureReport","group":[{"measureScore":{"value":1}}]}`))
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
	if se.Path != "group[0].population" {
		t.Errorf("expected path group[0].population, got %q", se.Path)
	}
}

func TestClassifyReport_NoGroups(t *testing.T) {
	for _, doc := range []string{
		`{"resourceType":"MeasureReport"}`,
		`{"resourceType":"MeasureReport","group":[]}`,
	} {
		_, err := ClassifyJSON([]byte(doc))
		var se *StructuralError
		if !errors.As(err, &se) {
			t.Errorf("%s: expected StructuralError, got %v", doc, err)
		}
	}
}

func TestClassifyJSON_NotAReport(t *testing.T) {
	_, err := ClassifyJSON([]byte(`{"resourceType":"Bundle"}`))
	if err == nil {
		t.Fatal("expected error")
	}
	var se *StructuralError
	if errors.As(err, &se) {
		t.Error("wrong resource type is a decode error, not a structural one")
	}
	if _, err := ClassifyJSON([]byte(`{`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestClassifiedReport_JSONShape(t *testing.T) {
	got, err := ClassifyReport(loadReport(t, "ipop-measure-report.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["population"] != "ipop" {
		t.Errorf("expected population ipop, got %v", m["population"])
	}
	if m["measureScore"] != float64(0) {
		t.Errorf("expected measureScore 0, got %v", m["measureScore"])
	}
	for _, key := range []string{"observation", "supplementalData"} {
		v, ok := m[key]
		if !ok {
			t.Errorf("expected key %q to be present", key)
		}
		if v != nil {
			t.Errorf("expected %q to be null, got %v", key, v)
		}
	}
	if _, ok := m["measureReport"].(map[string]interface{}); !ok {
		t.Errorf("expected measureReport object, got %T", m["measureReport"])
	}
}
