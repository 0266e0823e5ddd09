package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/internal/syncsrv/config"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dberror"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dbmanager"
	"github.com/flowershow/contentsync/internal/syncsrv/db/memstore"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
	"github.com/flowershow/contentsync/internal/syncsrv/db/postgresql"
	"github.com/flowershow/contentsync/pkg/types"
)

// testStores returns the memory store and, when FLOWERSHOW_TEST_DSN names a
// reachable database, the PostgreSQL store.
func testStores(t *testing.T) map[string]Store {
	ctx := log.Logger.WithContext(context.Background())
	stores := map[string]Store{"memory": memstore.New()}
	dsn := os.Getenv("FLOWERSHOW_TEST_DSN")
	if dsn == "" {
		return stores
	}
	pool := dbmanager.NewPool(ctx, "postgresql", dbmanager.Options{DSN: dsn, StatementTimeout: "10s"})
	require.NotNil(t, pool)
	t.Cleanup(func() { pool.Close() })
	s := postgresql.NewStore(pool)
	require.NoError(t, s.Migrate(ctx))
	stores["postgres"] = s
	return stores
}

func TestPoolOptions(t *testing.T) {
	cfg := config.DBConfig{
		Host: "db.internal", Port: 5432, User: "u", DBName: "sites", SSLMode: "disable",
		StatementTimeout: "30s", LockTimeout: "5s", MaxOpenConns: 12,
	}
	opts := poolOptions(cfg)
	assert.Equal(t, cfg.DSN(), opts.DSN)
	assert.Equal(t, "30s", opts.StatementTimeout)
	assert.Equal(t, "5s", opts.LockTimeout)
	assert.Equal(t, 12, opts.MaxOpenConns)
}

func newTestSite(t *testing.T, ctx context.Context, s Store) *models.Site {
	site := &models.Site{
		Source: models.SiteSource{
			Kind:       types.SourceGitHub,
			Repository: "flowershow/test-" + uuid.New().String()[:8],
			Branch:     "main",
		},
		ContentInclude: []string{"blog"},
		PrivacyMode:    types.PrivacyPublic,
		Plan:           types.PlanFree,
	}
	require.NoError(t, s.CreateSite(ctx, site))
	t.Cleanup(func() { s.DeleteSite(ctx, site.ID) })
	return site
}

func TestSites(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := log.Logger.WithContext(context.Background())
			site := newTestSite(t, ctx, s)
			assert.NotEqual(t, uuid.Nil, site.ID)

			got, err := s.GetSite(ctx, site.ID)
			require.NoError(t, err)
			assert.Equal(t, site.Source, got.Source)
			assert.Equal(t, []string{"blog"}, got.ContentInclude)

			err = s.CreateSite(ctx, site)
			assert.ErrorIs(t, err, dberror.ErrAlreadyExists)

			sites, err := s.ListSitesByRepository(ctx, site.Source.Repository, "main")
			require.NoError(t, err)
			require.Len(t, sites, 1)
			assert.Equal(t, site.ID, sites[0].ID)

			sites, err = s.ListSitesByRepository(ctx, site.Source.Repository, "dev")
			require.NoError(t, err)
			assert.Empty(t, sites)

			require.NoError(t, s.DeleteSite(ctx, site.ID))
			_, err = s.GetSite(ctx, site.ID)
			assert.ErrorIs(t, err, dberror.ErrNotFound)
			assert.ErrorIs(t, s.DeleteSite(ctx, site.ID), dberror.ErrNotFound)
		})
	}
}

func TestBlobLifecycle(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := log.Logger.WithContext(context.Background())
			site := newTestSite(t, ctx, s)

			err := s.MarkBlobsPending(ctx, site.ID, []models.PendingBlob{
				{Path: "index.md", Extension: "md", Size: 10},
				{Path: "img/a.png", Extension: "png", Size: 20},
			})
			require.NoError(t, err)

			blobs, err := s.ListBlobs(ctx, site.ID)
			require.NoError(t, err)
			require.Len(t, blobs, 2)
			assert.Equal(t, "img/a.png", blobs[0].Path)
			for _, b := range blobs {
				assert.Equal(t, types.SyncStatusPending, b.SyncStatus)
				assert.Empty(t, b.ContentHash)
			}

			root := "/"
			w, h := 1, 2
			err = s.CompleteBlob(ctx, site.ID, models.BlobResult{
				Path:        "index.md",
				ContentHash: "abc",
				Size:        10,
				AppPath:     &root,
				Metadata:    map[string]any{"title": "Home"},
			})
			require.NoError(t, err)
			err = s.CompleteBlob(ctx, site.ID, models.BlobResult{
				Path: "img/a.png", ContentHash: "def", Size: 20, Width: &w, Height: &h,
			})
			require.NoError(t, err)

			b, err := s.GetBlob(ctx, site.ID, "index.md")
			require.NoError(t, err)
			assert.Equal(t, types.SyncStatusSuccess, b.SyncStatus)
			assert.Equal(t, "abc", b.ContentHash)
			assert.Equal(t, "/", *b.AppPath)
			assert.Equal(t, "Home", b.Metadata["title"])
			assert.Nil(t, b.SyncError)

			// pending again keeps the last good content
			require.NoError(t, s.MarkBlobsPending(ctx, site.ID, []models.PendingBlob{{Path: "index.md", Extension: "md"}}))
			b, err = s.GetBlob(ctx, site.ID, "index.md")
			require.NoError(t, err)
			assert.Equal(t, types.SyncStatusPending, b.SyncStatus)
			assert.Equal(t, "abc", b.ContentHash)
			assert.Equal(t, "Home", b.Metadata["title"])

			require.NoError(t, s.FailBlob(ctx, site.ID, "index.md", "fetch failed"))
			b, err = s.GetBlob(ctx, site.ID, "index.md")
			require.NoError(t, err)
			assert.Equal(t, types.SyncStatusError, b.SyncStatus)
			require.NotNil(t, b.SyncError)
			assert.Equal(t, "fetch failed", *b.SyncError)
			assert.Equal(t, "Home", b.Metadata["title"])

			img, err := s.GetBlob(ctx, site.ID, "img/a.png")
			require.NoError(t, err)
			require.NotNil(t, img.Width)
			assert.Equal(t, 1, *img.Width)
			assert.Equal(t, 2, *img.Height)

			require.NoError(t, s.DeleteBlob(ctx, site.ID, "img/a.png"))
			_, err = s.GetBlob(ctx, site.ID, "img/a.png")
			assert.ErrorIs(t, err, dberror.ErrNotFound)
			assert.ErrorIs(t, s.DeleteBlob(ctx, site.ID, "img/a.png"), dberror.ErrNotFound)
			assert.ErrorIs(t, s.FailBlob(ctx, site.ID, "missing.md", "x"), dberror.ErrNotFound)
		})
	}
}

func TestStalePending(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := log.Logger.WithContext(context.Background())
			site := newTestSite(t, ctx, s)
			require.NoError(t, s.MarkBlobsPending(ctx, site.ID, []models.PendingBlob{
				{Path: "a.md", Extension: "md"},
				{Path: "b.md", Extension: "md"},
			}))
			require.NoError(t, s.CompleteBlob(ctx, site.ID, models.BlobResult{Path: "b.md", ContentHash: "h"}))

			ids, err := s.StalePendingSites(ctx, time.Now().Add(-time.Hour))
			require.NoError(t, err)
			assert.NotContains(t, ids, site.ID)

			future := time.Now().Add(time.Hour)
			ids, err = s.StalePendingSites(ctx, future)
			require.NoError(t, err)
			assert.Contains(t, ids, site.ID)

			n, err := s.FailStalePending(ctx, site.ID, future, "timed out")
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			a, err := s.GetBlob(ctx, site.ID, "a.md")
			require.NoError(t, err)
			assert.Equal(t, types.SyncStatusError, a.SyncStatus)
			b, err := s.GetBlob(ctx, site.ID, "b.md")
			require.NoError(t, err)
			assert.Equal(t, types.SyncStatusSuccess, b.SyncStatus)
		})
	}
}

func TestRuns(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := log.Logger.WithContext(context.Background())
			site := newTestSite(t, ctx, s)

			first := &models.SyncRun{SiteID: site.ID, Trigger: types.TriggerWebhook, Mode: "full"}
			require.NoError(t, s.CreateRun(ctx, first))
			assert.Equal(t, types.RunStateRunning, first.State)

			first.State = types.RunStateDone
			first.Outcome = types.RunOutcomeComplete
			first.Created = 3
			require.NoError(t, s.FinishRun(ctx, first))
			assert.NotNil(t, first.CompletedAt)

			time.Sleep(2 * time.Millisecond)
			second := &models.SyncRun{SiteID: site.ID, Trigger: types.TriggerForce, Mode: "full"}
			require.NoError(t, s.CreateRun(ctx, second))

			runs, err := s.ListRuns(ctx, site.ID, 10)
			require.NoError(t, err)
			require.Len(t, runs, 2)
			assert.Equal(t, second.ID, runs[0].ID)
			assert.Equal(t, first.ID, runs[1].ID)
			assert.Equal(t, 3, runs[1].Created)
			assert.Equal(t, types.RunOutcomeComplete, runs[1].Outcome)

			runs, err = s.ListRuns(ctx, site.ID, 1)
			require.NoError(t, err)
			assert.Len(t, runs, 1)

			err = s.CreateRun(ctx, &models.SyncRun{SiteID: uuid.New(), Trigger: types.TriggerCLI, Mode: "full"})
			assert.ErrorIs(t, err, dberror.ErrNotFound)
		})
	}
}

func TestNewStoreMemory(t *testing.T) {
	ctx := log.Logger.WithContext(context.Background())
	s, pool, err := NewStore(ctx, config.DBConfig{Store: "memory"})
	require.NoError(t, err)
	assert.Nil(t, pool)
	assert.NotNil(t, s)

	_, _, err = NewStore(ctx, config.DBConfig{Store: "sqlite"})
	assert.Error(t, err)
}
