package render

import "testing"

func TestResolveLink(t *testing.T) {
	const root = "/docs"

	cases := []struct {
		name     string
		docPath  string
		raw      string
		wantPath string
		wantFrag string
		wantOK   bool
	}{
		{"sibling", "a/b.md", "other.md", "a/other.md", "", true},
		{"sibling with fragment", "a/b.md", "other.md#intro", "a/other.md", "intro", true},
		{"parent dir", "a/b.md", "../readme.md", "readme.md", "", true},
		{"root relative", "a/b.md", "/readme.md", "readme.md", "", true},
		{"root relative nested", "a/b.md", "/guides/setup.md", "guides/setup.md", "", true},
		{"escaped space", "a/b.md", "my%20notes.md", "a/my notes.md", "", true},
		{"top level doc", "readme.md", "guide.markdown", "guide.markdown", "", true},

		{"escapes root", "a/b.md", "../../../etc/passwd.md", "", "", false},
		{"external http", "a/b.md", "https://example.com/x.md", "", "", false},
		{"protocol relative", "a/b.md", "//example.com/x.md", "", "", false},
		{"mailto", "a/b.md", "mailto:someone@example.com", "", "", false},
		{"pure anchor", "a/b.md", "#intro", "", "", false},
		{"not a document", "a/b.md", "image.png", "", "", false},
		{"empty", "a/b.md", "", "", "", false},
		{"fragment only after cut", "a/b.md", "#", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ref, ok := ResolveLink(root, tc.docPath, tc.raw)
			if ok != tc.wantOK {
				t.Fatalf("ResolveLink(%q, %q) ok = %v, want %v", tc.docPath, tc.raw, ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if ref.Path != tc.wantPath || ref.Fragment != tc.wantFrag {
				t.Fatalf("ResolveLink(%q, %q) = {%q, %q}, want {%q, %q}",
					tc.docPath, tc.raw, ref.Path, ref.Fragment, tc.wantPath, tc.wantFrag)
			}
		})
	}
}

func TestDocumentReferenceAddress(t *testing.T) {
	cases := []struct {
		name string
		ref  DocumentReference
		base string
		want string
	}{
		{"no base", DocumentReference{Path: "a/b.md"}, "", "/#/a/b.md"},
		{"base trailing slash", DocumentReference{Path: "a/b.md"}, "http://localhost:8765/", "http://localhost:8765/#/a/b.md"},
		{"with fragment", DocumentReference{Path: "a/b.md", Fragment: "intro"}, "", "/#/a/b.md#intro"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ref.Address(tc.base); got != tc.want {
				t.Fatalf("Address(%q) = %q, want %q", tc.base, got, tc.want)
			}
		})
	}
}
