package dash

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dash-audio-server/internal/catalog"
	"dash-audio-server/internal/platform/metrics"
)

// TrackSummary is the API-facing view of a catalog track, including the
// manifest URL once the track is streamable.
type TrackSummary struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Album   string `json:"album"`
	Format  string `json:"format"`
	DashURL string `json:"dash_url,omitempty"`
}

// Service is the conversion orchestrator: it serializes conversion
// requests per track, owns the status lifecycle, and recovers stuck
// jobs. The manifest file on disk is the ground truth for readiness;
// the status store is a cache over it.
type Service struct {
	catalog catalog.Store
	status  StatusStore
	enc     Encoder
	submit  Submitter
	dashDir string
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewService returns a Service serving manifests from dashDir.
// Metrics may be nil to disable metric recording (e.g. in tests).
// Call SetSubmitter before the first RequestConversion.
func NewService(store catalog.Store, status StatusStore, enc Encoder, dashDir string, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		catalog: store,
		status:  status,
		enc:     enc,
		dashDir: dashDir,
		log:     log,
		metrics: m,
	}
}

// SetSubmitter wires the async execution mechanism. Separate from the
// constructor because the worker pool's runner is ExecuteConversion,
// which needs the Service first.
func (s *Service) SetSubmitter(sub Submitter) { s.submit = sub }

func (s *Service) manifestPath(slug string) string {
	return filepath.Join(s.dashDir, slug, ManifestName)
}

func (s *Service) manifestURL(slug string) string {
	return "/dash/" + slug + "/" + ManifestName
}

func (s *Service) manifestExists(slug string) bool {
	info, err := os.Stat(s.manifestPath(slug))
	return err == nil && !info.IsDir()
}

// RequestConversion starts (or reports) the conversion of one track.
// If the track is already processing, it returns started=false and no
// duplicate work is scheduled. Otherwise it writes processing to the
// status store before handing the id to the async mechanism: a second
// concurrent request then observes processing and returns early. The
// caller never blocks on encoding.
func (s *Service) RequestConversion(ctx context.Context, trackID int64) (Status, bool, error) {
	track, ok, err := s.catalog.GetByID(ctx, trackID)
	if err != nil {
		return Status{}, false, fmt.Errorf("look up track %d: %w", trackID, err)
	}
	if !ok {
		return Status{}, false, ErrTrackNotFound
	}

	if st, found := s.status.Get(trackID); found && st.State == StateProcessing {
		return st, false, nil
	}

	st := Status{State: StateProcessing, UpdatedAt: time.Now().UTC()}
	s.status.Set(trackID, st)
	if s.metrics != nil {
		s.metrics.IncConversionsStarted()
	}

	s.log.Info("conversion requested",
		slog.Int64("track_id", trackID),
		slog.String("title", track.Title))
	s.submit.Submit(trackID)

	return st, true, nil
}

// GetStatus returns the current conversion status. A manifest on disk
// always wins over the cached status, so a stale error or missing cache
// entry cannot hide a streamable track.
func (s *Service) GetStatus(ctx context.Context, trackID int64) (Status, error) {
	track, ok, err := s.catalog.GetByID(ctx, trackID)
	if err != nil {
		return Status{}, fmt.Errorf("look up track %d: %w", trackID, err)
	}
	if !ok {
		return Status{}, ErrTrackNotFound
	}

	if s.manifestExists(track.Slug) {
		return Status{State: StateReady, URL: s.manifestURL(track.Slug)}, nil
	}
	if st, found := s.status.Get(trackID); found {
		return st, nil
	}
	return Status{State: StateNotStarted}, nil
}

// ExecuteConversion runs one conversion attempt. It is invoked by the
// worker pool, not by API callers. A non-nil return feeds the pool's
// retry budget.
func (s *Service) ExecuteConversion(ctx context.Context, trackID int64) error {
	track, ok, err := s.catalog.GetByID(ctx, trackID)
	if err != nil {
		return fmt.Errorf("look up track %d: %w", trackID, err)
	}
	if !ok {
		// The track vanished between submission and execution; retrying
		// cannot help.
		s.log.Error("conversion dropped, track no longer in catalog",
			slog.Int64("track_id", trackID))
		return nil
	}

	// Refresh the processing stamp. Covers the sweeper race and direct
	// re-submissions: last write wins.
	s.status.Set(trackID, Status{State: StateProcessing, UpdatedAt: time.Now().UTC()})

	if err := s.enc.Convert(ctx, track); err != nil {
		s.status.Set(trackID, Status{
			State:     StateError,
			Error:     err.Error(),
			UpdatedAt: time.Now().UTC(),
		})
		if s.metrics != nil {
			s.metrics.IncConversionsFailed()
		}
		return err
	}

	s.status.Set(trackID, Status{
		State:     StateReady,
		URL:       s.manifestURL(track.Slug),
		UpdatedAt: time.Now().UTC(),
	})
	if s.metrics != nil {
		s.metrics.IncConversionsCompleted()
	}
	s.log.Info("conversion completed",
		slog.Int64("track_id", trackID),
		slog.String("slug", track.Slug))
	return nil
}

// SweepStuckJobs finds tracks stuck in processing past threshold, marks
// them errored, and re-drives them through RequestConversion. The
// read-then-write is not transactional: a job finishing between the two
// may be re-run, which is harmless because conversion output is
// idempotent per track. Returns the number of jobs re-driven.
func (s *Service) SweepStuckJobs(ctx context.Context, threshold time.Duration) int {
	now := time.Now().UTC()
	swept := 0

	for trackID, st := range s.status.Snapshot() {
		if st.State != StateProcessing || now.Sub(st.UpdatedAt) <= threshold {
			continue
		}

		s.log.Warn("stuck conversion detected",
			slog.Int64("track_id", trackID),
			slog.Time("last_update", st.UpdatedAt))

		s.status.Set(trackID, Status{
			State:     StateError,
			Error:     "conversion timed out",
			UpdatedAt: now,
		})
		if s.metrics != nil {
			s.metrics.IncStuckJobsRecovered()
		}

		if _, _, err := s.RequestConversion(ctx, trackID); err != nil {
			s.log.Error("failed to re-request stuck conversion",
				slog.Int64("track_id", trackID),
				slog.String("error", err.Error()))
		}
		swept++
	}

	return swept
}

// StreamLocation returns the manifest URL for a ready track, or
// ErrNotReady when the manifest does not exist yet.
func (s *Service) StreamLocation(ctx context.Context, trackID int64) (string, error) {
	track, ok, err := s.catalog.GetByID(ctx, trackID)
	if err != nil {
		return "", fmt.Errorf("look up track %d: %w", trackID, err)
	}
	if !ok {
		return "", ErrTrackNotFound
	}
	if !s.manifestExists(track.Slug) {
		return "", ErrNotReady
	}
	return s.manifestURL(track.Slug), nil
}

// ListTracks returns all catalog tracks with their manifest URL when
// one exists on disk.
func (s *Service) ListTracks(ctx context.Context) ([]TrackSummary, error) {
	tracks, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}

	out := make([]TrackSummary, 0, len(tracks))
	for _, t := range tracks {
		summary := TrackSummary{
			ID:     t.ID,
			Title:  t.Title,
			Artist: t.Artist,
			Album:  t.Album,
			Format: t.Format,
		}
		if s.manifestExists(t.Slug) {
			summary.DashURL = s.manifestURL(t.Slug)
		}
		out = append(out, summary)
	}
	return out, nil
}

// ProcessingCount returns the number of tracks currently recorded as
// processing. Used for the metrics gauge.
func (s *Service) ProcessingCount() int {
	n := 0
	for _, st := range s.status.Snapshot() {
		if st.State == StateProcessing {
			n++
		}
	}
	return n
}
