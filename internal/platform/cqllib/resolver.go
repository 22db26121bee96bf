// Package cqllib works with CQL library sources on disk: it resolves the
// include graph of a main library and sends libraries to a translator
// service for conversion to ELM.
package cqllib

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ErrLibraryNotFound is returned when an include names a library that no
// file in the directory declares.
var ErrLibraryNotFound = errors.New("library not found")

var (
	libraryStatement = regexp.MustCompile(`(?m)^\s*library\s+(\S+)\s+version\s+'([^']+)'`)
	includeStatement = regexp.MustCompile(`(?m)^\s*include\s+(\S+)\s+version\s+'([^']+)'`)
)

// Identifier names a library version.
type Identifier struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (id Identifier) String() string {
	return fmt.Sprintf("%s version '%s'", id.Name, id.Version)
}

// Library is a CQL source file with its declared identifier and includes.
type Library struct {
	Identifier
	Path     string       `json:"path"`
	Includes []Identifier `json:"includes,omitempty"`
}

// ParseLibrary reads the library and include statements of a CQL source.
func ParseLibrary(path string, src []byte) (Library, error) {
	m := libraryStatement.FindSubmatch(src)
	if m == nil {
		return Library{}, fmt.Errorf("%s: no library statement", filepath.Base(path))
	}
	lib := Library{
		Identifier: Identifier{Name: string(m[1]), Version: string(m[2])},
		Path:       path,
	}
	for _, inc := range includeStatement.FindAllSubmatch(src, -1) {
		lib.Includes = append(lib.Includes, Identifier{Name: string(inc[1]), Version: string(inc[2])})
	}
	return lib, nil
}

// ScanDir parses every .cql file in dir, in file name order.
func ScanDir(dir string) ([]Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read cql directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".cql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	libs := make([]Library, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		lib, err := ParseLibrary(path, src)
		if err != nil {
			return nil, err
		}
		libs = append(libs, lib)
	}
	return libs, nil
}

// DependentFiles returns the paths of every CQL file the library at
// mainPath includes, directly or transitively. Libraries are looked up in
// the main file's directory. The result is in depth-first include order
// without duplicates and never contains mainPath itself.
func DependentFiles(mainPath string) ([]string, error) {
	libs, err := ScanDir(filepath.Dir(mainPath))
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]*Library, len(libs))
	byID := make(map[Identifier]*Library, len(libs))
	for i := range libs {
		byPath[filepath.Clean(libs[i].Path)] = &libs[i]
		byID[libs[i].Identifier] = &libs[i]
	}
	main, ok := byPath[filepath.Clean(mainPath)]
	if !ok {
		return nil, fmt.Errorf("%s is not a cql library in %s", filepath.Base(mainPath), filepath.Dir(mainPath))
	}

	var (
		out  []string
		seen = map[string]bool{main.Path: true}
	)
	var walk func(lib *Library) error
	walk = func(lib *Library) error {
		for _, inc := range lib.Includes {
			dep, ok := byID[inc]
			if !ok {
				return fmt.Errorf("%w: %s referenced in %s", ErrLibraryNotFound, inc, filepath.Base(lib.Path))
			}
			if seen[dep.Path] {
				continue
			}
			seen[dep.Path] = true
			out = append(out, dep.Path)
			if err := walk(dep); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(main); err != nil {
		return nil, err
	}
	return out, nil
}
