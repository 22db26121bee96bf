package measurereport

import (
	"encoding/json"
	"strings"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/fhir"
)

const (
	// MeasureInfoExtensionURL marks a contained Observation as the measure
	// observation of a continuous-variable measure.
	MeasureInfoExtensionURL = "http://hl7.org/fhir/us/cqfmeasures/StructureDefinition/cqfm-measureInfo"

	// SupplementalDataExtensionURL marks a contained Observation as a
	// supplemental data element.
	SupplementalDataExtensionURL = "http://hl7.org/fhir/us/davinci-deqm/StructureDefinition/extension-supplementalData"

	// SDEPrefix is the reserved id prefix of supplemental data Observations.
	SDEPrefix = "sde-"
)

type extension struct {
	URL string `json:"url"`
}

// containedObservation holds the parts of a contained resource the
// supplemental extractor reads.
type containedObservation struct {
	ResourceType         string                `json:"resourceType"`
	ID                   string                `json:"id"`
	Extension            []extension           `json:"extension,omitempty"`
	Code                 *fhir.CodeableConcept `json:"code,omitempty"`
	ValueQuantity        *fhir.Quantity        `json:"valueQuantity,omitempty"`
	ValueCodeableConcept *fhir.CodeableConcept `json:"valueCodeableConcept,omitempty"`
}

func (o *containedObservation) tagged(url string) bool {
	for _, ext := range o.Extension {
		if ext.URL == url {
			return true
		}
	}
	return false
}

// observations decodes the contained Observations in source order. Entries
// that are not Observations or cannot be decoded are skipped.
func observations(r *Report) []containedObservation {
	var out []containedObservation
	for _, raw := range r.Contained {
		var o containedObservation
		if err := json.Unmarshal(raw, &o); err != nil {
			continue
		}
		if o.ResourceType != "Observation" {
			continue
		}
		out = append(out, o)
	}
	return out
}

// ExtractObservation returns the measure observation formatted as
// "<value> <unit>", or nil when the report has none. If several contained
// resources are tagged, the first in source order is used.
func ExtractObservation(r *Report) *string {
	if r == nil {
		return nil
	}
	for _, o := range observations(r) {
		if !o.tagged(MeasureInfoExtensionURL) || o.ValueQuantity == nil || o.ValueQuantity.Value == "" {
			continue
		}
		s := o.ValueQuantity.String()
		return &s
	}
	return nil
}

// ExtractSupplementalTags returns one tag per supplemental data Observation
// whose id starts with SDEPrefix, in source order. It returns nil rather than
// an empty slice when nothing matches.
func ExtractSupplementalTags(r *Report) []SupplementalTag {
	if r == nil {
		return nil
	}
	var tags []SupplementalTag
	for _, o := range observations(r) {
		if !o.tagged(SupplementalDataExtensionURL) || !strings.HasPrefix(o.ID, SDEPrefix) {
			continue
		}
		tag := SupplementalTag{Name: o.ID}
		if c, ok := valueCoding(&o); ok {
			tag.Code = c.Code
			tag.Display = c.Display
			tag.System = c.System
		}
		tags = append(tags, tag)
	}
	return tags
}

func valueCoding(o *containedObservation) (fhir.Coding, bool) {
	if o.ValueCodeableConcept != nil && len(o.ValueCodeableConcept.Coding) > 0 {
		return o.ValueCodeableConcept.Coding[0], true
	}
	if o.Code != nil && len(o.Code.Coding) > 0 {
		return o.Code.Coding[0], true
	}
	return fhir.Coding{}, false
}
