package measurereport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/fhir"
)

func postClassify(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	NewHandler().RegisterRoutes(e.Group("/api/v1"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, "application/fhir+json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Classify(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "denominator-measure-report.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	rec := postClassify(t, string(data))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got ClassifiedReport
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Population != Denominator {
		t.Errorf("expected denominator, got %s", got.Population)
	}
	if got.MeasureScore == nil || *got.MeasureScore != 0 {
		t.Errorf("expected score 0, got %v", got.MeasureScore)
	}
}

func TestHandler_Classify_InvalidJSON(t *testing.T) {
	rec := postClassify(t, `{"resourceType":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var oo fhir.OperationOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &oo); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if !oo.HasErrors() {
		t.Error("expected an error issue")
	}
}

func TestHandler_Classify_Structural(t *testing.T) {
	rec := postClassify(t, `{"resourceType":"MeasureReport","group":[{}]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "group[0].population") {
		t.Errorf("expected the element path in the outcome, got %s", rec.Body.String())
	}
}
