// Package library serves the markdown collection under a single root
// directory. Every path it accepts or returns is root-relative and has
// passed confinement; callers never see absolute filesystem paths.
package library

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/skitzo2000/MD-easy/confine"
	"github.com/skitzo2000/MD-easy/render"
)

// ErrNotFound reports a confined path with no file behind it.
var ErrNotFound = errors.New("library: document not found")

// Document is one rendered markdown file. Raw carries the unrendered source
// so viewers can preserve scroll position across re-renders.
type Document struct {
	Path  string `json:"path"`
	Title string `json:"title"`
	HTML  string `json:"html"`
	Raw   string `json:"raw"`
}

// Library reads and renders documents under root.
type Library struct {
	root     string
	renderer *render.Renderer
}

// New creates a Library over root. The renderer must have been built for the
// same root so rewritten links stay confined to it.
func New(root string, renderer *render.Renderer) *Library {
	return &Library{root: filepath.Clean(root), renderer: renderer}
}

// Root returns the library's serving root.
func (l *Library) Root() string { return l.root }

// List walks the root and returns every document path, root-relative and
// sorted. Dot-directories, dotfiles, and node_modules are skipped. Paths
// outside the root cannot appear: the walk starts at root and never follows
// anything but directory entries.
func (l *Library) List() ([]string, error) {
	var docs []string
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != l.root && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !confine.IsDocument(name) {
			return nil
		}
		docs = append(docs, confine.Rel(l.root, p))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(docs)
	return docs, nil
}

// Get confines requested, reads the document, and renders it. Returns
// confine.ErrOutOfBounds or confine.ErrNotDocument for bad paths and
// ErrNotFound when the file does not exist.
func (l *Library) Get(requested string) (*Document, error) {
	abs, err := confine.ConfineDocument(l.root, strings.TrimPrefix(requested, "/"))
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rel := confine.Rel(l.root, abs)
	html, err := l.renderer.Render(rel, src)
	if err != nil {
		return nil, err
	}
	title := render.Title(src)
	if title == "" {
		title = rel
	}
	return &Document{Path: rel, Title: title, HTML: html, Raw: string(src)}, nil
}

// Raw confines requested and returns the file bytes unrendered. Unlike Get
// it accepts any extension, so documents can reference images and other
// assets living beside them.
func (l *Library) Raw(requested string) ([]byte, error) {
	abs, err := confine.Confine(l.root, strings.TrimPrefix(requested, "/"))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}
