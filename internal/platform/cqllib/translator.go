package cqllib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// TargetFormatHeader selects the translator output format.
	TargetFormatHeader = "X-TargetFormat"
	FormatELMJSON      = "application/elm+json"
	FormatELMXML       = "application/elm+xml"

	maxTranslation = 64 << 20
)

// ELM is one translated library as returned by the translator.
type ELM struct {
	// Name is the form field or file name the translator gave the part.
	Name    string
	Content []byte
}

// LibraryID returns the identifier declared in a JSON ELM document, or ""
// when the content is not JSON ELM.
func (e ELM) LibraryID() string {
	var doc struct {
		Library struct {
			Identifier struct {
				ID string `json:"id"`
			} `json:"identifier"`
		} `json:"library"`
	}
	if err := json.Unmarshal(e.Content, &doc); err != nil {
		return ""
	}
	return doc.Library.Identifier.ID
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

func WithTranslatorHTTPClient(c *http.Client) TranslatorOption {
	return func(t *Translator) { t.httpClient = c }
}

func WithTranslatorLogger(l zerolog.Logger) TranslatorOption {
	return func(t *Translator) { t.logger = l }
}

// WithTargetFormat overrides the requested ELM format.
func WithTargetFormat(format string) TranslatorOption {
	return func(t *Translator) { t.format = format }
}

// Translator is a client for a cql-translation-service endpoint.
type Translator struct {
	url        string
	format     string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewTranslator(url string, opts ...TranslatorOption) *Translator {
	t := &Translator{
		url:        url,
		format:     FormatELMJSON,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// TranslateFiles reads the given CQL files and translates them in one
// request, so includes between them resolve.
func (t *Translator) TranslateFiles(ctx context.Context, paths []string) ([]ELM, error) {
	sources := make(map[string][]byte, len(paths))
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		name := filepath.Base(p)
		sources[name] = src
		names = append(names, name)
	}
	return t.translate(ctx, names, sources)
}

func (t *Translator) translate(ctx context.Context, names []string, sources map[string][]byte) ([]ELM, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range names {
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			return nil, fmt.Errorf("build multipart body: %w", err)
		}
		if _, err := fw.Write(sources[name]); err != nil {
			return nil, fmt.Errorf("build multipart body: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "multipart/form-data")
	req.Header.Set(TargetFormatHeader, t.format)

	t.logger.Debug().Str("url", t.url).Strs("files", names).Msg("translating cql")
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("translate: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return readTranslation(resp)
}

func readTranslation(resp *http.Response) ([]ELM, error) {
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("translate: bad content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxTranslation))
		if err != nil {
			return nil, fmt.Errorf("translate: read response: %w", err)
		}
		return []ELM{{Content: data}}, nil
	}

	mr := multipart.NewReader(resp.Body, params["boundary"])
	var out []ELM
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("translate: read part: %w", err)
		}
		data, err := io.ReadAll(io.LimitReader(part, maxTranslation))
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("translate: read part: %w", err)
		}
		name := part.FileName()
		if name == "" {
			name = part.FormName()
		}
		out = append(out, ELM{Name: name, Content: data})
	}
	return out, nil
}
