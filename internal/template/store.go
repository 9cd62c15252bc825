package template

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/hubmapy/internal/errs"
)

//go:embed queries/*.rq
var builtinFS embed.FS

// Ext is the file extension of query template files.
const Ext = ".rq"

// Template is a named, parametrized query body.
type Template struct {
	// Name identifies the template (operation name or file base name).
	Name string

	// Body is the query text, possibly containing ?placeholder tokens.
	Body string

	// Source is where the body was read from ("builtin:<name>" or a file path).
	Source string
}

// Store resolves templates by name or path. The zero value is not usable;
// create with New or NewFromFS.
type Store struct {
	fsys fs.FS
	dir  string
}

// New creates a Store backed by the embedded built-in queries.
func New() *Store {
	return &Store{fsys: builtinFS, dir: "queries"}
}

// NewFromFS creates a Store backed by an arbitrary filesystem, with
// templates located in dir. Used to ship alternative query sets.
func NewFromFS(fsys fs.FS, dir string) *Store {
	return &Store{fsys: fsys, dir: dir}
}

// Load returns the built-in template with the given name.
// Returns a NOT_FOUND error if no such template exists.
func (s *Store) Load(name string) (Template, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return Template{}, errs.New(errs.CodeNotFound, "template.load", fmt.Sprintf("invalid template name %q", name))
	}

	data, err := fs.ReadFile(s.fsys, path.Join(s.dir, name+Ext))
	if errors.Is(err, fs.ErrNotExist) {
		return Template{}, errs.New(errs.CodeNotFound, "template.load", fmt.Sprintf("unknown template %q", name))
	}
	if err != nil {
		return Template{}, errs.Wrap(errs.CodeIO, "template.load", fmt.Sprintf("reading template %q", name), err)
	}

	return Template{Name: name, Body: string(data), Source: "builtin:" + name}, nil
}

// LoadFile reads a user-supplied query file. The template name is the
// file's base name without extension.
// Returns an IO error if the file cannot be read.
func (s *Store) LoadFile(p string) (Template, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return Template{}, errs.Wrap(errs.CodeIO, "template.load_file", fmt.Sprintf("cannot read query file %s", p), err)
	}

	base := filepath.Base(p)
	return Template{
		Name:   strings.TrimSuffix(base, filepath.Ext(base)),
		Body:   string(data),
		Source: p,
	}, nil
}

// Names returns the sorted names of all built-in templates.
func (s *Store) Names() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, s.dir)
	if err != nil {
		return nil, errs.Wrap(errs.CodeIO, "template.names", "listing templates", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != Ext {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), Ext))
	}
	sort.Strings(names)
	return names, nil
}
