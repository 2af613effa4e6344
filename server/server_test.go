package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/skitzo2000/MD-easy/library"
	"github.com/skitzo2000/MD-easy/notify"
	"github.com/skitzo2000/MD-easy/render"
)

func newTestService(t *testing.T, apiKey string) *Service {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"readme.md":       "# Home\n\nSee [setup](guides/setup.md#install).\n",
		"guides/setup.md": "# Setup\n\n## Install\n",
		"logo.txt":        "not markdown",
		"evil.html":       "<script>alert(1)</script>",
		"logo.png":        "\x89PNG\r\n",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := DefaultConfig()
	cfg.DocRoot = root
	cfg.APIKey = apiKey

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := notify.NewHub(notify.WithLogger(logger))
	lib := library.New(root, render.New(root, cfg.BaseURL))
	return NewService(cfg, logger, hub, lib, nil)
}

func getJSON(t *testing.T, h http.Handler, path string, wantStatus int) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != wantStatus {
		t.Fatalf("GET %s = %d, want %d: %s", path, rec.Code, wantStatus, rec.Body)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("GET %s: bad JSON: %v", path, err)
	}
	return out
}

func TestHealth(t *testing.T) {
	h := newTestService(t, "").Routes()
	out := getJSON(t, h, "/health", http.StatusOK)
	if out["status"] != "ok" {
		t.Fatalf("status = %v", out["status"])
	}
}

func TestConfigEndpoint(t *testing.T) {
	h := newTestService(t, "").Routes()
	out := getJSON(t, h, "/api/config", http.StatusOK)
	if out["theme"] != "default" {
		t.Fatalf("theme = %v", out["theme"])
	}
}

func TestFilesEndpoint(t *testing.T) {
	h := newTestService(t, "").Routes()
	out := getJSON(t, h, "/api/files", http.StatusOK)
	files, ok := out["files"].([]any)
	if !ok || len(files) != 2 {
		t.Fatalf("files = %v, want 2 documents", out["files"])
	}
	if files[0] != "guides/setup.md" || files[1] != "readme.md" {
		t.Fatalf("files = %v, want sorted paths", files)
	}
}

func TestDocEndpoint(t *testing.T) {
	h := newTestService(t, "").Routes()
	out := getJSON(t, h, "/api/doc?path=readme.md", http.StatusOK)
	if out["title"] != "Home" {
		t.Fatalf("title = %v", out["title"])
	}
	if !strings.Contains(out["html"].(string), `/#/guides/setup.md#install`) {
		t.Fatalf("links not rewritten: %v", out["html"])
	}
	if out["raw"] == "" {
		t.Fatal("raw source missing")
	}
}

func TestDocEndpointErrors(t *testing.T) {
	h := newTestService(t, "").Routes()
	cases := []struct {
		path string
		want int
	}{
		{"/api/doc", http.StatusBadRequest},
		{"/api/doc?path=logo.txt", http.StatusBadRequest},
		{"/api/doc?path=../../etc/passwd.md", http.StatusForbidden},
		{"/api/doc?path=missing.md", http.StatusNotFound},
	}
	for _, tc := range cases {
		getJSON(t, h, tc.path, tc.want)
	}
}

func TestRawEndpoint(t *testing.T) {
	h := newTestService(t, "").Routes()
	cases := []struct {
		path     string
		wantType string
		wantBody string
	}{
		{"/raw/logo.txt", "text/plain; charset=utf-8", "not markdown"},
		{"/raw/readme.md", "text/plain; charset=utf-8", "# Home\n\nSee [setup](guides/setup.md#install).\n"},
		// Stored markup must come back inert, never as text/html.
		{"/raw/evil.html", "text/plain; charset=utf-8", "<script>alert(1)</script>"},
		{"/raw/logo.png", "image/png", "\x89PNG\r\n"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d: %s", tc.path, rec.Code, rec.Body)
		}
		if ct := rec.Header().Get("Content-Type"); ct != tc.wantType {
			t.Errorf("GET %s content-type = %q, want %q", tc.path, ct, tc.wantType)
		}
		if rec.Body.String() != tc.wantBody {
			t.Errorf("GET %s body = %q", tc.path, rec.Body.String())
		}
	}
}

func TestRefreshAdvancesVersion(t *testing.T) {
	svc := newTestService(t, "")
	h := svc.Routes()

	body := bytes.NewBufferString(`{"reason":"edited","path":"/readme.md","fragment":"home"}`)
	req := httptest.NewRequest(http.MethodPost, "/refresh", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /refresh = %d: %s", rec.Code, rec.Body)
	}

	out := getJSON(t, h, "/api/version", http.StatusOK)
	if out["version"].(float64) != 1 {
		t.Fatalf("version = %v, want 1", out["version"])
	}
	nav := out["navigation"].(map[string]any)
	if nav["path"] != "readme.md" || nav["fragment"] != "home" || nav["highlight"] != true {
		t.Fatalf("navigation = %v", nav)
	}
}

func TestRefreshEmptyBody(t *testing.T) {
	h := newTestService(t, "").Routes()
	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /refresh with empty body = %d", rec.Code)
	}
	out := getJSON(t, h, "/api/version", http.StatusOK)
	if out["version"].(float64) != 1 {
		t.Fatalf("version = %v, want 1", out["version"])
	}
	if _, present := out["navigation"]; present {
		t.Fatalf("navigation = %v, want omitted", out["navigation"])
	}
}

func TestRefreshAuth(t *testing.T) {
	svc := newTestService(t, "sekrit")
	h := svc.Routes()

	post := func(header, value string) int {
		req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
		if header != "" {
			req.Header.Set(header, value)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post("", ""); code != http.StatusUnauthorized {
		t.Fatalf("no key = %d, want 401", code)
	}
	if code := post("X-Api-Key", "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong key = %d, want 401", code)
	}
	if v, _ := svc.hub.Current(); v != 0 {
		t.Fatalf("version advanced to %d by rejected calls", v)
	}
	if code := post("X-Api-Key", "sekrit"); code != http.StatusOK {
		t.Fatalf("X-Api-Key = %d, want 200", code)
	}
	if code := post("Authorization", "Bearer sekrit"); code != http.StatusOK {
		t.Fatalf("Bearer = %d, want 200", code)
	}
	if v, _ := svc.hub.Current(); v != 2 {
		t.Fatalf("version = %d, want 2", v)
	}
}

func TestEventStream(t *testing.T) {
	svc := newTestService(t, "")
	ts := httptest.NewServer(svc.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		t.Helper()
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return name, data
			}
		}
	}

	// Initial catch-up event carries the current version.
	name, data := readEvent()
	if name != "version" {
		t.Fatalf("first event = %q, want version", name)
	}
	var current notify.RefreshEvent
	if err := json.Unmarshal([]byte(data), &current); err != nil {
		t.Fatalf("bad version payload: %v", err)
	}
	if current.Version != 0 {
		t.Fatalf("initial version = %d, want 0", current.Version)
	}

	done := make(chan struct{})
	go func() {
		svc.hub.Notify("edited", &notify.Navigation{Path: "readme.md", Highlight: true})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked")
	}

	name, data = readEvent()
	if name != "refresh" {
		t.Fatalf("event = %q, want refresh", name)
	}
	var ev notify.RefreshEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatalf("bad refresh payload: %v", err)
	}
	if ev.Version != 1 || ev.Reason != "edited" || ev.Navigation == nil || ev.Navigation.Path != "readme.md" {
		t.Fatalf("refresh event = %+v", ev)
	}
}

func TestIndexServed(t *testing.T) {
	h := newTestService(t, "").Routes()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "MD-Easy") {
		t.Fatal("index shell not served")
	}
}
