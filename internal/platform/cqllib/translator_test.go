package cqllib

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func TestTranslateFiles(t *testing.T) {
	dir := t.TempDir()
	main := writeCQL(t, dir, "Main.cql", "library Main version '1'\ninclude Helpers version '1'\n")
	helpers := writeCQL(t, dir, "Helpers.cql", "library Helpers version '1'\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(TargetFormatHeader); got != FormatELMJSON {
			t.Errorf("expected %s header %q, got %q", TargetFormatHeader, FormatELMJSON, got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart request: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		files := r.MultipartForm.File["file"]
		if len(files) != 2 {
			t.Errorf("expected 2 files, got %d", len(files))
		}

		mw := multipart.NewWriter(w)
		w.Header().Set("Content-Type", mw.FormDataContentType())
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				t.Errorf("open part: %v", err)
				return
			}
			src, _ := io.ReadAll(f)
			f.Close()
			id := strings.Fields(string(src))[1]
			part, _ := mw.CreateFormField(id)
			io.WriteString(part, `{"library":{"identifier":{"id":"`+id+`","version":"1"}}}`)
		}
		mw.Close()
	}))
	defer srv.Close()

	elms, err := NewTranslator(srv.URL).TranslateFiles(context.Background(), []string{main, helpers})
	if err != nil {
		t.Fatalf("TranslateFiles: %v", err)
	}
	if len(elms) != 2 {
		t.Fatalf("expected 2 ELM documents, got %d", len(elms))
	}
	if elms[0].Name != "Main" || elms[0].LibraryID() != "Main" {
		t.Errorf("unexpected first document: name=%q id=%q", elms[0].Name, elms[0].LibraryID())
	}
	if elms[1].LibraryID() != "Helpers" {
		t.Errorf("expected Helpers, got %q", elms[1].LibraryID())
	}
}

func TestTranslateFiles_SingleDocument(t *testing.T) {
	dir := t.TempDir()
	main := writeCQL(t, dir, "Main.cql", "library Main version '1'\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", mime.FormatMediaType(FormatELMJSON, nil))
		io.WriteString(w, `{"library":{"identifier":{"id":"Main"}}}`)
	}))
	defer srv.Close()

	elms, err := NewTranslator(srv.URL).TranslateFiles(context.Background(), []string{main})
	if err != nil {
		t.Fatalf("TranslateFiles: %v", err)
	}
	if len(elms) != 1 || elms[0].LibraryID() != "Main" {
		t.Errorf("unexpected result %+v", elms)
	}
}

func TestTranslateFiles_ErrorStatus(t *testing.T) {
	dir := t.TempDir()
	main := writeCQL(t, dir, "Main.cql", "library Main version '1'\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "translation failed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewTranslator(srv.URL).TranslateFiles(context.Background(), []string{main})
	if err == nil || !strings.Contains(err.Error(), "translation failed") {
		t.Fatalf("expected translator error, got %v", err)
	}
}

func TestTranslateFiles_MissingFile(t *testing.T) {
	_, err := NewTranslator("http://localhost").TranslateFiles(context.Background(), []string{filepath.Join(t.TempDir(), "nope.cql")})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestELM_LibraryID_NotJSON(t *testing.T) {
	if id := (ELM{Content: []byte("<library/>")}).LibraryID(); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
}
