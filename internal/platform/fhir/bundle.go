package fhir

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoPatientLocation is returned when a transaction-response carries no
// Patient location to read the server-assigned id from.
var ErrNoPatientLocation = errors.New("no Patient location in transaction response")

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Request  *BundleRequest  `json:"request,omitempty"`
	Response *BundleResponse `json:"response,omitempty"`
}

type BundleRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

type BundleResponse struct {
	Status       string          `json:"status"`
	Location     string          `json:"location,omitempty"`
	LastModified *time.Time      `json:"lastModified,omitempty"`
	Outcome      json.RawMessage `json:"outcome,omitempty"`
}

// ParseBundle decodes a Bundle and checks its resourceType.
func ParseBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.ResourceType != "Bundle" {
		return nil, fmt.Errorf("expected resourceType Bundle, got %q", b.ResourceType)
	}
	return &b, nil
}

// ResourceHeader decodes only the resourceType and id of an entry's resource.
func (e *BundleEntry) ResourceHeader() (Resource, error) {
	var r Resource
	if len(e.Resource) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(e.Resource, &r); err != nil {
		return r, fmt.Errorf("decode entry resource: %w", err)
	}
	return r, nil
}

// PatientID returns the id of the first Patient created by a
// transaction-response. Locations have the form "Patient/<id>" or
// "Patient/<id>/_history/<n>", optionally prefixed by the server base URL.
func (b *Bundle) PatientID() (string, error) {
	for _, e := range b.Entry {
		if e.Response == nil || !strings.Contains(e.Response.Location, "Patient/") {
			continue
		}
		loc := e.Response.Location
		loc = loc[strings.Index(loc, "Patient/"):]
		rt, id, ok := ParseReference(loc)
		if !ok || rt != "Patient" {
			return "", fmt.Errorf("could not parse an id from %q", e.Response.Location)
		}
		return id, nil
	}
	return "", ErrNoPatientLocation
}
