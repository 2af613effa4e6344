// Package render turns raw markdown into displayable HTML. It owns the two
// pieces of link infrastructure the viewer depends on: heading slugs (stable
// fragment targets, unique per render pass) and cross-document link
// rewriting (relative references become confined viewer addresses).
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/util"
)

// Renderer converts markdown documents under a fixed serving root.
// Safe for concurrent use: per-render state lives in the parser context.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// New creates a Renderer for documents under root. baseURL is prepended to
// rewritten document links so shared addresses match the server's reachable
// address; empty means viewer-relative.
func New(root, baseURL string) *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(
				util.Prioritized(&linkTransformer{root: root, base: baseURL}, 100),
			),
		),
	)

	// UGC policy plus the heading ids the slugger generates; everything
	// else authors write in raw HTML blocks is stripped.
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")

	return &Renderer{md: md, policy: policy}
}

// Render converts source (the document at docPath, root-relative) to
// sanitized HTML. Heading ids and rewritten links are recomputed on every
// call; nothing is cached across renders.
func (r *Renderer) Render(docPath string, source []byte) (string, error) {
	ctx := parser.NewContext(parser.WithIDs(newSlugger()))
	ctx.Set(docPathKey, docPath)

	var buf bytes.Buffer
	if err := r.md.Convert(source, &buf, parser.WithContext(ctx)); err != nil {
		return "", fmt.Errorf("render %s: %w", docPath, err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// Title returns the text of the first top-level heading, or "". Headings
// inside fenced or indented code blocks do not count.
func Title(source []byte) string {
	inFence := false
	for _, line := range strings.Split(string(source), "\n") {
		marker := strings.TrimLeft(line, " ")
		if strings.HasPrefix(marker, "```") || strings.HasPrefix(marker, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		// Indented lines are code blocks, not headings.
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}
