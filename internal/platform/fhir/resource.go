package fhir

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Resource is the minimal header shared by every FHIR resource.
type Resource struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// HasCode reports whether any coding carries the given code.
func (cc *CodeableConcept) HasCode(code string) bool {
	if cc == nil {
		return false
	}
	for _, c := range cc.Coding {
		if c.Code == code {
			return true
		}
	}
	return false
}

// FirstCode returns the first coding's code, or "" when there is none.
func (cc *CodeableConcept) FirstCode() string {
	if cc == nil || len(cc.Coding) == 0 {
		return ""
	}
	return cc.Coding[0].Code
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

// Quantity is a measured amount. Value keeps the number exactly as it was
// written so that "12.50" is not re-rendered as "12.5".
type Quantity struct {
	Value  json.Number `json:"value,omitempty"`
	Unit   string      `json:"unit,omitempty"`
	System string      `json:"system,omitempty"`
	Code   string      `json:"code,omitempty"`
}

// String renders the quantity as "<value> <unit>".
func (q *Quantity) String() string {
	if q == nil {
		return ""
	}
	return strings.TrimSpace(q.Value.String() + " " + q.Unit)
}

type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Parameters is the FHIR Parameters resource used as the body and result of
// operations such as $cql.
type Parameters struct {
	ResourceType string                `json:"resourceType"`
	ID           string                `json:"id,omitempty"`
	Parameter    []ParametersParameter `json:"parameter"`
}

type ParametersParameter struct {
	Name         string                `json:"name"`
	ValueString  *string               `json:"valueString,omitempty"`
	ValueBoolean *bool                 `json:"valueBoolean,omitempty"`
	ValueInteger *int                  `json:"valueInteger,omitempty"`
	Resource     json.RawMessage       `json:"resource,omitempty"`
	Part         []ParametersParameter `json:"part,omitempty"`
}

// NewParameters creates an empty Parameters resource.
func NewParameters() *Parameters {
	return &Parameters{ResourceType: "Parameters"}
}

// AddString appends a valueString parameter and returns p for chaining.
func (p *Parameters) AddString(name, value string) *Parameters {
	v := value
	p.Parameter = append(p.Parameter, ParametersParameter{Name: name, ValueString: &v})
	return p
}

// Get returns the first parameter with the given name.
func (p *Parameters) Get(name string) (*ParametersParameter, bool) {
	for i := range p.Parameter {
		if p.Parameter[i].Name == name {
			return &p.Parameter[i], true
		}
	}
	return nil, false
}

// StringValue returns the parameter value rendered as a string regardless of
// which value[x] slot carried it.
func (pp *ParametersParameter) StringValue() (string, bool) {
	switch {
	case pp.ValueString != nil:
		return *pp.ValueString, true
	case pp.ValueBoolean != nil:
		return strconv.FormatBool(*pp.ValueBoolean), true
	case pp.ValueInteger != nil:
		return strconv.Itoa(*pp.ValueInteger), true
	}
	return "", false
}

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return resourceType + "/" + id
}

// ParseReference splits "Type/id" (optionally prefixed with a base URL and
// suffixed with /_history/n) into its type and id.
func ParseReference(ref string) (resourceType, id string, ok bool) {
	ref = strings.TrimSuffix(ref, "/")
	if i := strings.Index(ref, "/_history/"); i >= 0 {
		ref = ref[:i]
	}
	parts := strings.Split(ref, "/")
	if len(parts) < 2 {
		return "", "", false
	}
	resourceType, id = parts[len(parts)-2], parts[len(parts)-1]
	if resourceType == "" || id == "" {
		return "", "", false
	}
	return resourceType, id, true
}
