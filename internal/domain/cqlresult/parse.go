package cqlresult

import (
	"encoding/json"
	"fmt"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/fhir"
)

// Parameter names of a define result inside a $cql response.
const (
	paramValue      = "value"
	paramResultType = "resultType"
	paramError      = "error"
)

// FromBundle reads a $cql response: a Bundle whose entries are Parameters
// resources, one per define, identified by their id. Entries that are not
// Parameters are skipped.
func FromBundle(b *fhir.Bundle) (ResultSet, error) {
	rs := make(ResultSet, 0, len(b.Entry))
	for i := range b.Entry {
		hdr, err := b.Entry[i].ResourceHeader()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if hdr.ResourceType != "Parameters" {
			continue
		}
		var p fhir.Parameters
		if err := json.Unmarshal(b.Entry[i].Resource, &p); err != nil {
			return nil, fmt.Errorf("entry %d: decode parameters: %w", i, err)
		}
		rs = append(rs, entryFromParameters(&p))
	}
	return rs, nil
}

// ParseResultSet decodes a $cql response document.
func ParseResultSet(data []byte) (ResultSet, error) {
	b, err := fhir.ParseBundle(data)
	if err != nil {
		return nil, err
	}
	return FromBundle(b)
}

func entryFromParameters(p *fhir.Parameters) Entry {
	e := Entry{Name: p.ID}
	if pp, ok := p.Get(paramError); ok {
		if s, ok := pp.StringValue(); ok {
			e.Error = &s
		}
	}
	if pp, ok := p.Get(paramValue); ok {
		if s, ok := pp.StringValue(); ok {
			e.Value = &s
		} else if len(pp.Resource) > 0 {
			s := string(pp.Resource)
			e.Value = &s
		}
	}
	if pp, ok := p.Get(paramResultType); ok {
		if s, ok := pp.StringValue(); ok {
			e.ResultType = ResultType(s)
		}
	}
	return e
}
