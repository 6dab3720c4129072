package sync

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	apperrors "github.com/ulauncher/extapi/pkg/errors"
	"github.com/ulauncher/extapi/pkg/extension"
	"github.com/ulauncher/extapi/pkg/observability"
	"github.com/ulauncher/extapi/pkg/storage"
)

const (
	DefaultInterval     = 5 * time.Hour
	DefaultFetchTimeout = 30 * time.Second
)

// Store is the part of storage.Store the sync worker needs.
type Store interface {
	All(ctx context.Context, f storage.Filter) ([]*extension.Extension, error)
	Update(ctx context.Context, id string, f storage.Fields) (*extension.Extension, error)
}

// Options configures a Syncer. Zero values select the defaults.
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	Logger       *log.Logger
}

// Syncer refreshes stored extensions from GitHub.
type Syncer struct {
	store    Store
	src      extension.Source
	resolver *extension.Resolver
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger
}

// New creates a Syncer reading repositories from src. Pass a source that
// bypasses response caches so every pass sees current data.
func New(store Store, src extension.Source, opts Options) *Syncer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Syncer{
		store:    store,
		src:      src,
		resolver: extension.NewResolver(src, opts.Logger),
		interval: opts.Interval,
		timeout:  opts.FetchTimeout,
		logger:   opts.Logger,
	}
}

// Run performs a pass immediately and then every interval until ctx is
// cancelled. A failed pass is logged and retried at the next tick.
func (s *Syncer) Run(ctx context.Context) error {
	s.logger.Info("sync worker started", "interval", s.interval)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync worker stopped")
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("sync worker stopped")
				return ctx.Err()
			}
			s.logger.Error("sync pass failed", "error", err)
		}
		s.logger.Debug("next sync pass scheduled", "in", s.interval)
		timer.Reset(s.interval)
	}
}

// RunOnce performs one pass over every stored extension. Per-record
// failures are counted, not returned; the error reports a failure to list
// records or a cancelled context.
func (s *Syncer) RunOnce(ctx context.Context) (observability.PassStats, error) {
	var stats observability.PassStats
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	exts, err := s.store.All(ctx, storage.Filter{})
	if err != nil {
		return stats, fmt.Errorf("list extensions: %w", err)
	}

	hooks := observability.Sync()
	start := time.Now()
	hooks.OnPassStart(ctx, len(exts))
	s.logger.Info("sync pass started", "extensions", len(exts))

	for _, ext := range exts {
		if err := ctx.Err(); err != nil {
			hooks.OnPassComplete(ctx, stats, time.Since(start))
			return stats, err
		}
		stats.Total++

		recStart := time.Now()
		outcome := s.syncRecord(ctx, ext)
		hooks.OnRecord(ctx, ext.ID, outcome, time.Since(recStart))

		switch outcome {
		case observability.OutcomeUpdated:
			stats.Updated++
		case observability.OutcomeUnpublished:
			stats.Unpublished++
		case observability.OutcomeSkipped:
			stats.Skipped++
		case observability.OutcomeFailed:
			stats.Failed++
		}
	}

	d := time.Since(start)
	hooks.OnPassComplete(ctx, stats, d)
	s.logger.Info("sync pass complete",
		"total", stats.Total,
		"updated", stats.Updated,
		"unpublished", stats.Unpublished,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"duration", d)
	return stats, nil
}

// syncRecord runs the per-record steps. A panic is reported as a failure
// of this record only.
func (s *Syncer) syncRecord(ctx context.Context, ext *extension.Extension) (outcome observability.Outcome) {
	logger := s.logger.With("id", ext.ID, "project", ext.ProjectPath)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while syncing extension",
				"panic", fmt.Sprintf("%T: %v", r, r),
				"stack", string(debug.Stack()))
			outcome = observability.OutcomeFailed
		}
	}()

	info, err := s.fetchRepo(ctx, ext.ProjectPath)
	if apperrors.Is(err, apperrors.CodeProjectNotFound) {
		if !ext.Published {
			return observability.OutcomeUnchanged
		}
		if _, err := s.store.Update(ctx, ext.ID, storage.Fields{Published: storage.Ptr(false)}); err != nil {
			logger.Error("failed to unpublish extension", "error", err)
			return observability.OutcomeFailed
		}
		logger.Warn("repository not found, extension unpublished")
		return observability.OutcomeUnpublished
	}
	if err != nil {
		logger.Warn("failed to fetch repository, skipping",
			"code", apperrors.GetCode(err),
			"error", apperrors.UserMessage(err))
		return observability.OutcomeSkipped
	}

	// Stars are written before versions are resolved.
	synced, failed := false, false
	if info.StargazersCount != ext.GithubStars {
		if _, err := s.store.Update(ctx, ext.ID, storage.Fields{GithubStars: storage.Ptr(info.StargazersCount)}); err != nil {
			logger.Error("failed to update stars", "error", err)
			failed = true
		} else {
			synced = true
		}
	}

	versions, ok := s.supportedVersions(ctx, logger, ext.ProjectPath, info)
	if ok && !slices.Equal(versions, ext.SupportedVersions) {
		if _, err := s.store.Update(ctx, ext.ID, storage.Fields{SupportedVersions: versions}); err != nil {
			logger.Error("failed to update supported versions", "error", err)
			return observability.OutcomeFailed
		}
		synced = true
	}

	if failed {
		return observability.OutcomeFailed
	}
	if !synced {
		return observability.OutcomeUnchanged
	}
	logger.Info("extension synced",
		"stars", info.StargazersCount,
		"versions", versions)
	return observability.OutcomeUpdated
}

// supportedVersions computes the supported majors. ok is false when they
// could not be determined and the stored value must be kept.
func (s *Syncer) supportedVersions(ctx context.Context, logger *log.Logger, path string, info *extension.RepoInfo) ([]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vf, err := s.resolver.Versions(ctx, path, info)
	switch {
	case err == nil:
		return extension.SupportedVersions(vf), true
	case apperrors.Is(err, apperrors.CodeJSONFileNotFound):
	case apperrors.Is(err, apperrors.CodeInvalidVersions):
		logger.Warn("invalid versions.json, using manifest api_version", "error", apperrors.UserMessage(err))
	default:
		logger.Error("failed to fetch versions.json",
			"code", apperrors.GetCode(err),
			"error", apperrors.UserMessage(err))
		return nil, false
	}

	m, err := s.resolver.ManifestAt(ctx, path, info.DefaultBranch)
	if err != nil {
		logger.Error("failed to resolve manifest",
			"code", apperrors.GetCode(err),
			"error", apperrors.UserMessage(err))
		return nil, false
	}
	return []string{m.APIVersion}, true
}

func (s *Syncer) fetchRepo(ctx context.Context, path string) (*extension.RepoInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.src.FetchRepo(ctx, path)
}
