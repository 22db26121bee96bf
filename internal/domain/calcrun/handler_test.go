package calcrun

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type page struct {
	Data    json.RawMessage `json:"data"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	HasMore bool            `json:"has_more"`
}

func newTestServer(t *testing.T) (*echo.Echo, string) {
	t.Helper()
	svc := newTestService(t)
	src := sampleRun()
	if err := svc.Record(context.Background(), src); err != nil {
		t.Fatalf("Record: %v", err)
	}
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	return e, src.ID
}

func get(t *testing.T, e *echo.Echo, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_ListRuns(t *testing.T) {
	e, id := newTestServer(t)
	rec := get(t, e, "/api/v1/runs")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var p page
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var runs []Run
	if err := json.Unmarshal(p.Data, &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if p.Total != 1 || len(runs) != 1 || runs[0].ID.String() != id {
		t.Errorf("unexpected page %+v", p)
	}
}

func TestHandler_GetRun(t *testing.T) {
	e, id := newTestServer(t)

	rec := get(t, e, "/api/v1/runs/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var run Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.Counts.Numerator != 1 || run.Counts.Error != 1 {
		t.Errorf("unexpected counts %+v", run.Counts)
	}

	if rec := get(t, e, "/api/v1/runs/not-a-uuid"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if rec := get(t, e, "/api/v1/runs/00000000-0000-0000-0000-000000000001"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_ListResults(t *testing.T) {
	e, id := newTestServer(t)

	rec := get(t, e, "/api/v1/runs/"+id+"/results?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var p page
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var results []Result
	if err := json.Unmarshal(p.Data, &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if p.Total != 3 || len(results) != 2 || !p.HasMore {
		t.Errorf("unexpected page total=%d len=%d has_more=%v", p.Total, len(results), p.HasMore)
	}

	rec = get(t, e, "/api/v1/runs/"+id+"/results?population=none")
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Total != 1 {
		t.Errorf("expected 1 none result, got %d", p.Total)
	}

	if rec := get(t, e, "/api/v1/runs/"+id+"/results?population=bogus"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if rec := get(t, e, "/api/v1/runs/00000000-0000-0000-0000-000000000001/results"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
