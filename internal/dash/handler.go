package dash

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dash-audio-server/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// contentTypes maps streaming file extensions to the MIME types players
// expect when fetching manifests and segments.
var contentTypes = map[string]string{
	".mpd":  "application/dash+xml",
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
	".m4s":  "video/iso.segment",
}

// LibraryScanner triggers a scan of the music library. Satisfied by
// *scanner.Scanner; tests substitute a fake.
type LibraryScanner interface {
	Scan(ctx context.Context) (int, error)
}

// Handler exposes the orchestrator's HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	scanner LibraryScanner
	dashDir string
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler over the given Service and scanner.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, scanner LibraryScanner, dashDir string, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, scanner: scanner, dashDir: dashDir, log: log, metrics: m}
}

// Routes mounts the API and file-serving endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/tracks", h.ListTracks)
		r.Post("/tracks/rescan", h.Rescan)
		r.Post("/prepare-dash", h.PrepareDash)
		r.Get("/status/{id}", h.ConversionStatus)
		r.Get("/stream/{id}", h.Stream)
	})
	r.Get("/dash/*", h.ServeDashFile)
	r.Get("/up", h.Health)
}

// ListTracks handles GET /api/tracks.
func (h *Handler) ListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.svc.ListTracks(r.Context())
	if err != nil {
		h.log.Error("list tracks failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("could not list tracks"))
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

// Rescan handles POST /api/tracks/rescan. The scan runs in the
// background; the response only acknowledges that it started.
func (h *Handler) Rescan(w http.ResponseWriter, r *http.Request) {
	if h.metrics != nil {
		h.metrics.IncScans()
	}
	go func() {
		count, err := h.scanner.Scan(context.Background())
		if err != nil {
			h.log.Error("library scan failed", slog.String("error", err.Error()))
			return
		}
		h.log.Info("library scan finished", slog.Int("tracks", count))
	}()

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Rescanning has begun",
	})
}

type prepareRequest struct {
	TrackID int64 `json:"track_id"`
}

// PrepareDash handles POST /api/prepare-dash.
// Body: { "track_id": 42 }.
func (h *Handler) PrepareDash(w http.ResponseWriter, r *http.Request) {
	var req prepareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("Track ID is required"))
		return
	}

	st, started, err := h.svc.RequestConversion(r.Context(), req.TrackID)
	switch {
	case errors.Is(err, ErrTrackNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("Track not found"))
		return
	case err != nil:
		h.log.Error("prepare dash failed",
			slog.Int64("track_id", req.TrackID),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("conversion request failed"))
		return
	}

	message := "Track is already being processed"
	if started {
		message = "Processing has started"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  string(st.State),
		"message": message,
	})
}

// ConversionStatus handles GET /api/status/{id}.
func (h *Handler) ConversionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := trackIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid track id"))
		return
	}

	st, err := h.svc.GetStatus(r.Context(), id)
	switch {
	case errors.Is(err, ErrTrackNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("Track not found"))
		return
	case err != nil:
		h.log.Error("status lookup failed",
			slog.Int64("track_id", id),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("status lookup failed"))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Stream handles GET /api/stream/{id}: redirects to the manifest when
// the track is ready.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	id, ok := trackIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid track id"))
		return
	}

	location, err := h.svc.StreamLocation(r.Context(), id)
	switch {
	case errors.Is(err, ErrTrackNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("Track not found"))
		return
	case errors.Is(err, ErrNotReady):
		writeJSON(w, http.StatusBadRequest, errorBody("Track is not ready for streaming"))
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorBody("stream lookup failed"))
		return
	}
	http.Redirect(w, r, location, http.StatusFound)
}

// ServeDashFile handles GET /dash/*: serves manifests and segments with
// the content types players require.
func (h *Handler) ServeDashFile(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	if rel == "" || strings.Contains(rel, "..") || strings.HasPrefix(rel, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	path := filepath.Join(h.dashDir, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	ct, ok := contentTypes[strings.ToLower(filepath.Ext(rel))]
	if !ok {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	http.ServeFile(w, r, path)
}

// Health handles GET /up.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func trackIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
