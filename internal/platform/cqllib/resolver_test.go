package cqllib

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeCQL(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseLibrary(t *testing.T) {
	src := `library EXM130 version '7.3.000'

using FHIR version '4.0.1'

include FHIRHelpers version '4.0.001' called FHIRHelpers
include MATGlobalCommonFunctions version '5.0.000' called Global
`
	lib, err := ParseLibrary("EXM130.cql", []byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Library{
		Identifier: Identifier{Name: "EXM130", Version: "7.3.000"},
		Path:       "EXM130.cql",
		Includes: []Identifier{
			{Name: "FHIRHelpers", Version: "4.0.001"},
			{Name: "MATGlobalCommonFunctions", Version: "5.0.000"},
		},
	}
	if diff := cmp.Diff(want, lib); diff != "" {
		t.Errorf("library mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLibrary_NoLibraryStatement(t *testing.T) {
	if _, err := ParseLibrary("x.cql", []byte("define \"X\": true")); err == nil {
		t.Error("expected error")
	}
}

func TestDependentFiles(t *testing.T) {
	dir := t.TempDir()
	main := writeCQL(t, dir, "Main.cql", `library Main version '1'
include Common version '2' called Common
include Helpers version '1' called Helpers
`)
	common := writeCQL(t, dir, "Common.cql", `library Common version '2'
include Helpers version '1' called Helpers
include Base version '1' called Base
`)
	helpers := writeCQL(t, dir, "Helpers.cql", `library Helpers version '1'`)
	base := writeCQL(t, dir, "Base.cql", `library Base version '1'`)
	writeCQL(t, dir, "Unrelated.cql", `library Unrelated version '1'`)
	writeCQL(t, dir, "notes.txt", `include Missing version '9'`)

	got, err := DependentFiles(main)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{common, helpers, base}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestDependentFiles_VersionMustMatch(t *testing.T) {
	dir := t.TempDir()
	main := writeCQL(t, dir, "Main.cql", `library Main version '1'
include Helpers version '2' called Helpers
`)
	writeCQL(t, dir, "Helpers.cql", `library Helpers version '1'`)

	_, err := DependentFiles(main)
	if !errors.Is(err, ErrLibraryNotFound) {
		t.Fatalf("expected ErrLibraryNotFound, got %v", err)
	}
	if want := "Helpers version '2' referenced in Main.cql"; !strings.Contains(err.Error(), want) {
		t.Errorf("expected %q in %q", want, err.Error())
	}
}

func TestDependentFiles_Cycle(t *testing.T) {
	dir := t.TempDir()
	a := writeCQL(t, dir, "A.cql", "library A version '1'\ninclude B version '1'\n")
	b := writeCQL(t, dir, "B.cql", "library B version '1'\ninclude A version '1'\n")

	got, err := DependentFiles(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{b}, got); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestDependentFiles_NoIncludes(t *testing.T) {
	dir := t.TempDir()
	main := writeCQL(t, dir, "Main.cql", `library Main version '1'`)
	got, err := DependentFiles(main)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no dependencies, got %v", got)
	}
}

func TestDependentFiles_MissingDir(t *testing.T) {
	if _, err := DependentFiles(filepath.Join(t.TempDir(), "nope", "Main.cql")); err == nil {
		t.Error("expected error")
	}
}
