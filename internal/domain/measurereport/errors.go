package measurereport

import (
	"errors"
	"fmt"
)

// StructuralError reports a MeasureReport that is missing an element the
// classifier depends on. Path is a FHIRPath-like location such as
// "group[0].population".
type StructuralError struct {
	Path   string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("malformed measure report at %s: %s", e.Path, e.Reason)
}

func missing(path string) error {
	return &StructuralError{Path: path, Reason: "element is missing"}
}

// under re-roots a StructuralError returned for a child element beneath
// prefix. Other errors pass through unchanged.
func under(prefix string, err error) error {
	var se *StructuralError
	if !errors.As(err, &se) {
		return err
	}
	return &StructuralError{Path: prefix + "." + se.Path, Reason: se.Reason}
}
