package render

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/skitzo2000/MD-easy/confine"
)

// routeMarker separates the base address from the document path in viewer
// addresses. The viewer shell routes on the URL hash, so documents load
// without a server round-trip.
const routeMarker = "/#/"

// DocumentReference is a resolved, root-confined document path plus an
// optional heading fragment. Immutable once produced.
type DocumentReference struct {
	Path     string // root-relative, slash-separated
	Fragment string // heading slug in the target document, not validated here
}

// Address renders the reference as a viewer address under base.
func (r DocumentReference) Address(base string) string {
	addr := strings.TrimRight(base, "/") + routeMarker + r.Path
	if r.Fragment != "" {
		addr += "#" + r.Fragment
	}
	return addr
}

// ResolveLink interprets raw, a link destination found in the document at
// docPath (root-relative), as a relative document reference. It returns the
// resolved reference and true, or false when raw is not a recognized
// document link: external URLs, pure-fragment anchors, non-markdown targets,
// and paths that escape the serving root are all left for the caller to pass
// through untouched. A single bad link must never fail the render.
func ResolveLink(root, docPath, raw string) (DocumentReference, bool) {
	if raw == "" || strings.HasPrefix(raw, "#") {
		return DocumentReference{}, false
	}
	if strings.Contains(raw, "://") || strings.HasPrefix(raw, "//") || strings.Contains(raw, ":") {
		// Absolute URL or scheme-ish destination (mailto:, tel:, ...).
		return DocumentReference{}, false
	}

	rawPath, fragment, _ := strings.Cut(raw, "#")
	if rawPath == "" {
		return DocumentReference{}, false
	}
	if decoded, err := url.PathUnescape(rawPath); err == nil {
		rawPath = decoded
	}
	if !confine.IsDocument(rawPath) {
		return DocumentReference{}, false
	}

	// Root-relative links anchor at the serving root; everything else is
	// relative to the current document's directory.
	var rel string
	if strings.HasPrefix(rawPath, "/") {
		rel = path.Clean(strings.TrimPrefix(rawPath, "/"))
	} else {
		rel = path.Join(path.Dir(docPath), rawPath)
	}

	confined, err := confine.Confine(root, filepath.FromSlash(rel))
	if err != nil {
		return DocumentReference{}, false
	}

	return DocumentReference{
		Path:     confine.Rel(root, confined),
		Fragment: fragment,
	}, true
}

// docPathKey carries the current document's root-relative path through the
// goldmark parser context into the link transformer.
var docPathKey = parser.NewContextKey()

// linkTransformer rewrites relative document links in the AST to viewer
// addresses. Registered on the parser, so every render pass gets it.
type linkTransformer struct {
	root string
	base string
}

func (t *linkTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	docPath, _ := pc.Get(docPathKey).(string)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}
		if ref, ok := ResolveLink(t.root, docPath, string(link.Destination)); ok {
			link.Destination = []byte(ref.Address(t.base))
		}
		return ast.WalkContinue, nil
	})
}
