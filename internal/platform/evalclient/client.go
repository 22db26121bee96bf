// Package evalclient talks to a cqf-ruler style FHIR server: it loads patient
// bundles and runs $evaluate-measure and $cql against them.
package evalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/fhir"
)

const (
	contentTypeFHIR = "application/fhir+json"

	// maxResponseSize bounds how much of a server response is read.
	maxResponseSize = 64 << 20

	defaultTimeout = 60 * time.Second
)

var tracer = otel.Tracer("fhir-bundle-calculator/evalclient")

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRateLimit caps outgoing requests at rps per second with the given
// burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(cl *Client) {
		if rps <= 0 {
			cl.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		cl.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for request logging.
func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url scheme must be http or https, got %q", u.Scheme)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the server base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostBundle submits a transaction bundle and returns the id the server
// assigned to its Patient.
func (c *Client) PostBundle(ctx context.Context, bundle []byte) (string, error) {
	body, err := c.do(ctx, "PostBundle", http.MethodPost, "/", bundle)
	if err != nil {
		return "", err
	}
	resp, err := fhir.ParseBundle(body)
	if err != nil {
		return "", fmt.Errorf("transaction response: %w", err)
	}
	return resp.PatientID()
}

// EvaluateMeasure runs $evaluate-measure for one patient and returns the
// individual MeasureReport document.
func (c *Client) EvaluateMeasure(ctx context.Context, measureID, patientID string, period fhir.Period) ([]byte, error) {
	q := periodQuery(period)
	q.Set("reportType", "patient")
	q.Set("subject", patientID)
	return c.do(ctx, "EvaluateMeasure", http.MethodGet, evaluatePath(measureID, q), nil)
}

// EvaluatePatientList runs $evaluate-measure over every patient on the
// server and returns the patient-list MeasureReport document.
func (c *Client) EvaluatePatientList(ctx context.Context, measureID string, period fhir.Period) ([]byte, error) {
	q := periodQuery(period)
	q.Set("reportType", "patient-list")
	return c.do(ctx, "EvaluatePatientList", http.MethodGet, evaluatePath(measureID, q), nil)
}

// EvaluateCQL runs a CQL library for one patient through $cql and returns
// the response bundle document.
func (c *Client) EvaluateCQL(ctx context.Context, cql, patientID string, period fhir.Period) ([]byte, error) {
	params := fhir.NewParameters().
		AddString("code", cql).
		AddString("patientId", patientID).
		AddString("periodStart", period.Start).
		AddString("periodEnd", period.End).
		AddString("context", "context")
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	return c.do(ctx, "EvaluateCQL", http.MethodPost, "/$cql", body)
}

func periodQuery(p fhir.Period) url.Values {
	q := url.Values{}
	if p.Start != "" {
		q.Set("periodStart", p.Start)
	}
	if p.End != "" {
		q.Set("periodEnd", p.End)
	}
	return q
}

func evaluatePath(measureID string, q url.Values) string {
	return "/Measure/" + url.PathEscape(measureID) + "/$evaluate-measure?" + q.Encode()
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	target := c.baseURL + path

	ctx, span := tracer.Start(ctx, "evalclient."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", target),
		),
	)
	defer span.End()

	data, err := c.roundTrip(ctx, method, target, body, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return data, nil
}

func (c *Client) roundTrip(ctx context.Context, method, target string, body []byte, span trace.Span) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", contentTypeFHIR)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeFHIR)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.logger.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("fhir request")

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newHTTPError(method, target, resp.StatusCode, data)
	}
	return data, nil
}
