// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github-org-mirror/internal/database"
	"github-org-mirror/internal/github"
	"github-org-mirror/internal/model"
	"github-org-mirror/internal/store"
)

// Store is the persistence the sync engine writes through.
type Store interface {
	GetActiveIntegration(ctx context.Context, userID, provider string) (model.Integration, error)
	ListActiveIntegrations(ctx context.Context, provider string) ([]model.Integration, error)
	MarkSynced(ctx context.Context, integrationID int64, at time.Time) (time.Time, error)
	CountEntities(ctx context.Context, integrationID int64) (store.EntityCounts, error)

	UpsertOrganization(ctx context.Context, arg database.UpsertOrganizationParams) error
	UpsertRepository(ctx context.Context, arg database.UpsertRepositoryParams) error
	UpsertCommits(ctx context.Context, commits []database.UpsertCommitParams) (store.BulkResult, error)
	UpsertPullRequests(ctx context.Context, prs []database.UpsertPullRequestParams) (store.BulkResult, error)
	UpsertIssues(ctx context.Context, issues []database.UpsertIssueParams) (store.BulkResult, error)
	UpsertUsers(ctx context.Context, users []database.UpsertUserParams) (store.BulkResult, error)
}

// Options tunes the sync engine.
type Options struct {
	Mode               model.SyncMode
	IncrementalOverlap time.Duration
	// CommitCap bounds the records of each child resource stored per repository per pass.
	CommitCap        int
	ExtendedEntities bool
	// Interval of the background scheduler. Zero disables it.
	Interval    time.Duration
	Concurrency int
}

const defaultCommitCap = 1000

// Syncer orchestrates the fetching and storing of data.
type Syncer struct {
	store    Store
	ghClient *github.Client
	logger   *slog.Logger
	opts     Options

	gate     singleflight.Group
	inflight sync.Map // integration ID -> struct{}

	lifetime context.Context
	cancel   context.CancelFunc
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(st Store, ghClient *github.Client, logger *slog.Logger, opts Options) *Syncer {
	if opts.Mode == "" {
		opts.Mode = model.SyncModeFull
	}
	if opts.CommitCap <= 0 {
		opts.CommitCap = defaultCommitCap
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	lifetime, cancel := context.WithCancel(context.Background())
	return &Syncer{
		store:    st,
		ghClient: ghClient,
		logger:   logger,
		opts:     opts,
		lifetime: lifetime,
		cancel:   cancel,
	}
}

// Sync runs one pass for the user's active GitHub integration and blocks until it completes.
// A call made while a pass for the same integration is running joins that pass and receives
// its report.
func (s *Syncer) Sync(ctx context.Context, userID string) (model.SyncReport, error) {
	integration, err := s.store.GetActiveIntegration(ctx, userID, model.ProviderGitHub)
	if err != nil {
		return model.SyncReport{}, err
	}
	return s.syncIntegration(ctx, integration)
}

func (s *Syncer) syncIntegration(ctx context.Context, integration model.Integration) (model.SyncReport, error) {
	key := strconv.FormatInt(integration.ID, 10)
	ch := s.gate.DoChan(key, func() (interface{}, error) {
		s.inflight.Store(integration.ID, struct{}{})
		defer s.inflight.Delete(integration.ID)

		// The pass is shared by every joined caller, so it outlives any single request and
		// stops only when the Syncer is closed.
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(s.lifetime, cancel)
		defer stop()

		return s.runPass(runCtx, integration)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return model.SyncReport{}, res.Err
		}
		if res.Shared {
			s.logger.Debug("Joined running sync pass", "integration_id", integration.ID)
		}
		return res.Val.(model.SyncReport), nil
	case <-ctx.Done():
		return model.SyncReport{}, ctx.Err()
	}
}

func (s *Syncer) runPass(ctx context.Context, integration model.Integration) (model.SyncReport, error) {
	mode := s.opts.Mode
	var since time.Time
	if mode == model.SyncModeIncremental {
		if integration.LastSyncAt == nil {
			mode = model.SyncModeFull
		} else {
			since = integration.LastSyncAt.Add(-s.opts.IncrementalOverlap)
		}
	}

	id := xid.New().String()
	logger := s.logger.With("sync_id", id, "integration_id", integration.ID, "user_id", integration.UserID)
	logger.Info("Starting sync pass", "mode", mode, "since", since)

	p := &pass{
		id:          id,
		integration: integration,
		session:     s.ghClient.Session(integration.AccessToken),
		store:       s.store,
		opts:        s.opts,
		mode:        mode,
		since:       since,
		logger:      logger,
		state:       stateStarted,
		seen:        make(map[naturalKey]struct{}),
	}
	return p.run(ctx)
}

// Status reports what is mirrored for the user's integration and whether a pass is running.
func (s *Syncer) Status(ctx context.Context, userID string) (model.SyncStatus, error) {
	integration, err := s.store.GetActiveIntegration(ctx, userID, model.ProviderGitHub)
	if err != nil {
		return model.SyncStatus{}, err
	}
	counts, err := s.store.CountEntities(ctx, integration.ID)
	if err != nil {
		return model.SyncStatus{}, fmt.Errorf("counting entities for integration %d: %w", integration.ID, err)
	}

	state := model.SyncStateCompleted
	if _, running := s.inflight.Load(integration.ID); running {
		state = model.SyncStateSyncing
	}
	return model.SyncStatus{
		LastSyncAt:         integration.LastSyncAt,
		TotalOrganizations: counts.Organizations,
		TotalRepositories:  counts.Repositories,
		TotalCommits:       counts.Commits,
		TotalPullRequests:  counts.PullRequests,
		TotalIssues:        counts.Issues,
		TotalUsers:         counts.Users,
		State:              state,
	}, nil
}

// Start runs a pass over every active integration on each tick until ctx is cancelled.
func (s *Syncer) Start(ctx context.Context) {
	if s.opts.Interval <= 0 {
		s.logger.Info("Background sync disabled")
		return
	}
	s.logger.Info("Starting syncer", "interval", s.opts.Interval.String(), "concurrency", s.opts.Concurrency)
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.runSyncCycle(ctx) // Initial sync

	for {
		select {
		case <-ticker.C:
			s.runSyncCycle(ctx)
		case <-ctx.Done():
			s.logger.Info("Syncer shutting down", "reason", ctx.Err())
			return
		}
	}
}

// runSyncCycle syncs all active integrations, several at a time.
func (s *Syncer) runSyncCycle(ctx context.Context) {
	integrations, err := s.store.ListActiveIntegrations(ctx, model.ProviderGitHub)
	if err != nil {
		s.logger.Error("Failed to list integrations", "error", err)
		return
	}
	s.logger.Info("Starting new sync cycle", "integrations", len(integrations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, integration := range integrations {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			_, err := s.syncIntegration(gctx, integration)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("Failed to sync integration", "integration_id", integration.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	s.logger.Info("Sync cycle finished")
}

// Close stops running passes. Passes already in flight end in ERROR.
func (s *Syncer) Close() {
	s.cancel()
}
