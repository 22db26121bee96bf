package fhir

import (
	"errors"
	"testing"
)

const txnResponse = `{
  "resourceType": "Bundle",
  "type": "transaction-response",
  "entry": [
    {"response": {"status": "201 Created", "location": "Encounter/enc-1/_history/1"}},
    {"response": {"status": "201 Created", "location": "Patient/example-patient/_history/1"}},
    {"response": {"status": "201 Created", "location": "Condition/cond-1/_history/1"}}
  ]
}`

func TestParseBundle(t *testing.T) {
	b, err := ParseBundle([]byte(txnResponse))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Type != "transaction-response" {
		t.Errorf("expected type transaction-response, got %s", b.Type)
	}
	if len(b.Entry) != 3 {
		t.Errorf("expected 3 entries, got %d", len(b.Entry))
	}
}

func TestParseBundle_WrongResourceType(t *testing.T) {
	_, err := ParseBundle([]byte(`{"resourceType":"Patient","id":"p1"}`))
	if err == nil {
		t.Fatal("expected error for non-Bundle resource")
	}
}

func TestParseBundle_InvalidJSON(t *testing.T) {
	if _, err := ParseBundle([]byte(`{`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestBundle_PatientID(t *testing.T) {
	b, err := ParseBundle([]byte(txnResponse))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, err := b.PatientID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "example-patient" {
		t.Errorf("expected example-patient, got %q", id)
	}
}

func TestBundle_PatientID_AbsoluteLocation(t *testing.T) {
	b := &Bundle{Entry: []BundleEntry{
		{Response: &BundleResponse{Location: "http://localhost:8080/fhir/Patient/123/_history/2"}},
	}}
	id, err := b.PatientID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "123" {
		t.Errorf("expected 123, got %q", id)
	}
}

func TestBundle_PatientID_Missing(t *testing.T) {
	b := &Bundle{Entry: []BundleEntry{
		{Response: &BundleResponse{Location: "Encounter/enc-1"}},
		{},
	}}
	_, err := b.PatientID()
	if !errors.Is(err, ErrNoPatientLocation) {
		t.Fatalf("expected ErrNoPatientLocation, got %v", err)
	}
}

func TestBundle_PatientID_NoID(t *testing.T) {
	b := &Bundle{Entry: []BundleEntry{
		{Response: &BundleResponse{Location: "Patient/"}},
	}}
	_, err := b.PatientID()
	if err == nil || errors.Is(err, ErrNoPatientLocation) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestBundleEntry_ResourceHeader(t *testing.T) {
	e := BundleEntry{Resource: []byte(`{"resourceType":"Parameters","id":"Numerator","parameter":[]}`)}
	h, err := e.ResourceHeader()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ResourceType != "Parameters" || h.ID != "Numerator" {
		t.Errorf("unexpected header %+v", h)
	}

	empty := BundleEntry{}
	h, err = empty.ResourceHeader()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ResourceType != "" {
		t.Errorf("expected empty header, got %+v", h)
	}
}
