// CLAUDE:SUMMARY HTTP surface: chi routes for config, listing, document fetch, version, refresh, events, and static shell.
// Package server exposes the document library and the change-notification
// hub over HTTP. Writers call POST /refresh; viewers hold GET /api/events
// open and re-fetch documents when a refresh arrives.
package server

import (
	"embed"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/skitzo2000/MD-easy/confine"
	"github.com/skitzo2000/MD-easy/library"
	"github.com/skitzo2000/MD-easy/notify"
	"github.com/skitzo2000/MD-easy/observability"
)

//go:embed static
var staticFS embed.FS

// Service wires the library, hub and recorder behind the HTTP routes.
type Service struct {
	cfg      *Config
	logger   *slog.Logger
	hub      *notify.Hub
	lib      *library.Library
	recorder *observability.Recorder
}

// NewService creates the HTTP service. recorder may be nil (stats database
// disabled).
func NewService(cfg *Config, logger *slog.Logger, hub *notify.Hub, lib *library.Library, recorder *observability.Recorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, logger: logger, hub: hub, lib: lib, recorder: recorder}
}

// Routes builds the router.
func (s *Service) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/config", s.handleConfig)
	r.Get("/api/files", s.handleFiles)
	r.Get("/api/doc", s.handleDoc)
	r.Get("/api/version", s.handleVersion)
	r.Get("/api/events", s.handleEvents)
	r.Get("/api/stats", s.handleStats)
	r.Get("/raw/*", s.handleRaw)

	r.Group(func(r chi.Router) {
		r.Use(s.requireKey)
		r.Post("/refresh", s.handleRefresh)
	})

	// SPA shell: everything the viewer needs is static; documents arrive
	// through the API.
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		f, err := staticFS.Open("static/index.html")
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	})
	r.Handle("/static/*", http.FileServerFS(staticFS))

	return r
}

func (s *Service) handleConfig(w http.ResponseWriter, _ *http.Request) {
	version, _ := s.hub.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"theme":    s.cfg.Theme,
		"base_url": s.cfg.BaseURL,
		"version":  version,
	})
}

func (s *Service) handleFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.lib.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if files == nil {
		files = []string{}
	}
	version, _ := s.hub.Current()
	s.recorder.Record(observability.EventListServed, "")
	writeJSON(w, http.StatusOK, map[string]any{"files": files, "version": version})
}

func (s *Service) handleDoc(w http.ResponseWriter, r *http.Request) {
	docPath := r.URL.Query().Get("path")
	if docPath == "" {
		writeError(w, http.StatusBadRequest, errors.New("path query parameter is required"))
		return
	}
	doc, err := s.lib.Get(docPath)
	if err != nil {
		writeDocError(w, err)
		return
	}
	s.recorder.Record(observability.EventDocFetched, doc.Path)
	writeJSON(w, http.StatusOK, doc)
}

func (s *Service) handleRaw(w http.ResponseWriter, r *http.Request) {
	rawPath := chi.URLParam(r, "*")
	data, err := s.lib.Raw(rawPath)
	if err != nil {
		writeDocError(w, err)
		return
	}
	// Stored markup must stay inert here: everything textual goes out as
	// text/plain, only image assets keep their real type.
	ct := "text/plain; charset=utf-8"
	if mt := mime.TypeByExtension(path.Ext(rawPath)); strings.HasPrefix(mt, "image/") {
		ct = mt
	}
	w.Header().Set("Content-Type", ct)
	w.Write(data)
}

func (s *Service) handleVersion(w http.ResponseWriter, _ *http.Request) {
	version, nav := s.hub.Current()
	writeJSON(w, http.StatusOK, notify.RefreshEvent{Version: version, Navigation: nav})
}

// refreshRequest is the POST /refresh body. Everything is optional: an empty
// body publishes a plain "something changed" event.
type refreshRequest struct {
	Reason    string `json:"reason"`
	Path      string `json:"path"`
	Fragment  string `json:"fragment"`
	Highlight *bool  `json:"highlight"`
}

func (s *Service) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// Best-effort body: malformed or absent JSON never rejects the call,
	// only authentication does.
	var req refreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	var nav *notify.Navigation
	if req.Path != "" {
		nav = &notify.Navigation{
			Path:      strings.TrimPrefix(req.Path, "/"),
			Fragment:  req.Fragment,
			Highlight: req.Highlight == nil || *req.Highlight,
		}
	}
	version := s.hub.Notify(req.Reason, nav)
	s.recorder.Record(observability.EventRefresh, req.Reason)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "version": version, "reason": req.Reason})
}

func (s *Service) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"hub":      s.hub.Stats(),
		"events":   s.recorder.Counters(),
		"overflow": s.recorder.Dropped(),
	})
}

// writeDocError maps library and confinement failures to status codes.
// Out-of-bounds paths are forbidden rather than not-found so probes can be
// told apart from missing files in logs.
func writeDocError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, confine.ErrOutOfBounds):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, confine.ErrNotDocument):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, library.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
