// internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github-org-mirror/internal/database"
	custom_errors "github-org-mirror/internal/errors"
	"github-org-mirror/internal/model"
)

// Store is the keyed document store behind the sync engine. Every write is an
// insert-or-update on the entity's natural key, so repeating a write never duplicates a row.
type Store struct {
	q      database.Querier
	logger *slog.Logger
}

// New creates a Store over the given queries.
func New(q database.Querier, logger *slog.Logger) *Store {
	return &Store{q: q, logger: logger}
}

// EntityCounts is the number of mirrored documents per entity type for one integration.
type EntityCounts struct {
	Organizations int64
	Repositories  int64
	Commits       int64
	PullRequests  int64
	Issues        int64
	Users         int64
}

// UpsertIntegration creates or refreshes the integration for (UserID, Provider) and marks it
// active. LastSyncAt is never written here.
func (s *Store) UpsertIntegration(ctx context.Context, in model.Integration) (model.Integration, error) {
	if in.Provider == "" {
		in.Provider = model.ProviderGitHub
	}
	if in.Scopes == nil {
		in.Scopes = []string{}
	}
	row, err := s.q.UpsertIntegration(ctx, database.UpsertIntegrationParams{
		UserID:      in.UserID,
		Provider:    in.Provider,
		AccessToken: in.AccessToken,
		Profile:     in.Profile,
		Scopes:      in.Scopes,
		ConnectedAt: timestamptz(in.ConnectedAt),
	})
	if err != nil {
		return model.Integration{}, fmt.Errorf("upserting integration for user %s: %w", in.UserID, err)
	}
	return toModelIntegration(row), nil
}

// GetActiveIntegration returns custom_errors.ErrIntegrationNotFound when the user has no
// active integration for the provider.
func (s *Store) GetActiveIntegration(ctx context.Context, userID, provider string) (model.Integration, error) {
	row, err := s.q.GetActiveIntegration(ctx, database.GetActiveIntegrationParams{UserID: userID, Provider: provider})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Integration{}, custom_errors.ErrIntegrationNotFound
	}
	if err != nil {
		return model.Integration{}, fmt.Errorf("loading integration for user %s: %w", userID, err)
	}
	return toModelIntegration(row), nil
}

func (s *Store) ListActiveIntegrations(ctx context.Context, provider string) ([]model.Integration, error) {
	rows, err := s.q.ListActiveIntegrations(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("listing active integrations: %w", err)
	}
	out := make([]model.Integration, 0, len(rows))
	for _, r := range rows {
		out = append(out, toModelIntegration(r))
	}
	return out, nil
}

// DeactivateIntegration soft-deletes the integration. Mirrored rows are kept.
func (s *Store) DeactivateIntegration(ctx context.Context, userID, provider string) error {
	n, err := s.q.DeactivateIntegration(ctx, database.DeactivateIntegrationParams{UserID: userID, Provider: provider})
	if err != nil {
		return fmt.Errorf("deactivating integration for user %s: %w", userID, err)
	}
	if n == 0 {
		return custom_errors.ErrIntegrationNotFound
	}
	return nil
}

// MarkSynced advances the integration's high-water mark and returns the stored value, which
// is never earlier than the previous one.
func (s *Store) MarkSynced(ctx context.Context, integrationID int64, at time.Time) (time.Time, error) {
	ts, err := s.q.MarkIntegrationSynced(ctx, database.MarkIntegrationSyncedParams{
		ID:       integrationID,
		SyncedAt: timestamptz(at),
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("marking integration %d synced: %w", integrationID, err)
	}
	return ts.Time, nil
}

func (s *Store) CountEntities(ctx context.Context, integrationID int64) (EntityCounts, error) {
	row, err := s.q.CountIntegrationEntities(ctx, integrationID)
	if err != nil {
		return EntityCounts{}, fmt.Errorf("counting entities for integration %d: %w", integrationID, err)
	}
	return EntityCounts(row), nil
}

// UpsertOrganization writes one organization keyed by (integration, external id).
func (s *Store) UpsertOrganization(ctx context.Context, arg database.UpsertOrganizationParams) error {
	if arg.IntegrationID == 0 || arg.ExternalID == 0 {
		return &custom_errors.InvalidDocumentError{Kind: "organization", Key: fmt.Sprintf("(%d, %d)", arg.IntegrationID, arg.ExternalID)}
	}
	if _, err := s.q.UpsertOrganization(ctx, arg); err != nil {
		return fmt.Errorf("upserting organization %s: %w", arg.Login, err)
	}
	return nil
}

// UpsertRepository writes one repository keyed by (integration, external id).
func (s *Store) UpsertRepository(ctx context.Context, arg database.UpsertRepositoryParams) error {
	if arg.IntegrationID == 0 || arg.ExternalID == 0 {
		return &custom_errors.InvalidDocumentError{Kind: "repository", Key: fmt.Sprintf("(%d, %d)", arg.IntegrationID, arg.ExternalID)}
	}
	if _, err := s.q.UpsertRepository(ctx, arg); err != nil {
		return fmt.Errorf("upserting repository %s: %w", arg.FullName, err)
	}
	return nil
}

func toModelIntegration(r database.Integration) model.Integration {
	in := model.Integration{
		ID:          r.ID,
		UserID:      r.UserID,
		Provider:    r.Provider,
		AccessToken: r.AccessToken,
		Profile:     r.Profile,
		Scopes:      r.Scopes,
		ConnectedAt: r.ConnectedAt.Time,
		IsActive:    r.IsActive,
	}
	if r.LastSyncAt.Valid {
		t := r.LastSyncAt.Time
		in.LastSyncAt = &t
	}
	return in
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
