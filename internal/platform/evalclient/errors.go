package evalclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/fhir"
)

// maxErrorBody is how much of a non-FHIR error body is kept for messages.
const maxErrorBody = 512

// HTTPError is returned for non-2xx responses. Outcome is set when the
// server answered with an OperationOutcome.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Outcome    *fhir.OperationOutcome
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	switch {
	case e.Outcome != nil && len(e.Outcome.Issue) > 0:
		msg += ": " + e.Outcome.Summary()
	case e.Body != "":
		msg += ": " + e.Body
	}
	return msg
}

func newHTTPError(method, url string, status int, body []byte) *HTTPError {
	e := &HTTPError{Method: method, URL: url, StatusCode: status}
	var oo fhir.OperationOutcome
	if err := json.Unmarshal(body, &oo); err == nil && oo.ResourceType == "OperationOutcome" {
		e.Outcome = &oo
		return e
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	e.Body = string(body)
	return e
}
