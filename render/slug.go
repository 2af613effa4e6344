package render

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/yuin/goldmark/ast"
)

// Slugify converts heading text to its base slug: lowercase, runs of
// non-alphanumeric characters collapsed to a single hyphen, no leading or
// trailing hyphens. Deterministic, so links built against a slug stay valid
// as long as the heading text is unchanged.
func Slugify(text string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingHyphen = false
		} else {
			pendingHyphen = true
		}
	}
	return b.String()
}

// slugger assigns heading identifiers during one render pass. Two headings
// with the same base slug get "-2", "-3", ... suffixes in document order.
// It implements goldmark's parser.IDs, so heading id attributes come out of
// the same registry that cross-document fragments reference.
type slugger struct {
	used map[string]int
}

func newSlugger() *slugger {
	return &slugger{used: make(map[string]int)}
}

func (s *slugger) Generate(value []byte, kind ast.NodeKind) []byte {
	base := Slugify(string(value))
	if base == "" {
		base = "section"
	}
	n := s.used[base] + 1
	s.used[base] = n
	if n == 1 {
		return []byte(base)
	}
	return []byte(base + "-" + strconv.Itoa(n))
}

// Put records an explicitly authored id so generated slugs never collide
// with it.
func (s *slugger) Put(value []byte) {
	id := string(value)
	if s.used[id] == 0 {
		s.used[id] = 1
	}
}
