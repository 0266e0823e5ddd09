// Package memstore keeps sites, blobs and runs in process memory. It backs
// single process deployments and tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dberror"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
	"github.com/flowershow/contentsync/pkg/types"
)

type siteData struct {
	site  *models.Site
	blobs map[string]*models.Blob
	runs  []*models.SyncRun
}

type Store struct {
	mu    sync.RWMutex
	sites map[uuid.UUID]*siteData
	now   func() time.Time
}

func New() *Store {
	return &Store{
		sites: make(map[uuid.UUID]*siteData),
		now:   time.Now,
	}
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Close(ctx context.Context) {}

func (s *Store) CreateSite(ctx context.Context, site *models.Site) apperrors.Error {
	if site == nil {
		return dberror.ErrInvalidInput.Msg("site cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if site.ID == uuid.Nil {
		site.ID = uuid.New()
	}
	if _, ok := s.sites[site.ID]; ok {
		return dberror.ErrAlreadyExists.Msg("site already exists")
	}
	now := s.now()
	site.CreatedAt, site.UpdatedAt = now, now
	s.sites[site.ID] = &siteData{
		site:  copySite(site),
		blobs: make(map[string]*models.Blob),
	}
	return nil
}

func (s *Store) GetSite(ctx context.Context, siteID uuid.UUID) (*models.Site, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.sites[siteID]
	if !ok {
		return nil, dberror.ErrNotFound.Msg("site not found")
	}
	return copySite(d.site), nil
}

func (s *Store) ListSitesByRepository(ctx context.Context, repository, branch string) ([]*models.Site, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Site
	for _, d := range s.sites {
		src := d.site.Source
		if src.Kind == types.SourceGitHub && src.Repository == repository && d.site.Branch() == branch {
			out = append(out, copySite(d.site))
		}
	}
	sort.Slice(out, func(i, j int) bool { return uuid.Compare(out[i].ID, out[j].ID) < 0 })
	return out, nil
}

func (s *Store) DeleteSite(ctx context.Context, siteID uuid.UUID) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sites[siteID]; !ok {
		return dberror.ErrNotFound.Msg("site not found")
	}
	delete(s.sites, siteID)
	return nil
}

func (s *Store) site(siteID uuid.UUID) (*siteData, apperrors.Error) {
	if siteID == uuid.Nil {
		return nil, dberror.ErrMissingSiteID
	}
	d, ok := s.sites[siteID]
	if !ok {
		return nil, dberror.ErrNotFound.Msg("site not found")
	}
	return d, nil
}

func (s *Store) ListBlobs(ctx context.Context, siteID uuid.UUID) ([]*models.Blob, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.site(siteID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Blob, 0, len(d.blobs))
	for _, b := range d.blobs {
		out = append(out, copyBlob(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Store) GetBlob(ctx context.Context, siteID uuid.UUID, path string) (*models.Blob, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.site(siteID)
	if err != nil {
		return nil, err
	}
	b, ok := d.blobs[path]
	if !ok {
		return nil, dberror.ErrNotFound.Msg("blob not found")
	}
	return copyBlob(b), nil
}

func (s *Store) MarkBlobsPending(ctx context.Context, siteID uuid.UUID, blobs []models.PendingBlob) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.site(siteID)
	if err != nil {
		return err
	}
	now := s.now()
	for _, p := range blobs {
		b, ok := d.blobs[p.Path]
		if !ok {
			b = &models.Blob{
				ID:        uuid.New(),
				SiteID:    siteID,
				Path:      p.Path,
				Extension: p.Extension,
				Size:      p.Size,
				CreatedAt: now,
			}
			d.blobs[p.Path] = b
		}
		b.SyncStatus = types.SyncStatusPending
		b.UpdatedAt = now
	}
	return nil
}

func (s *Store) CompleteBlob(ctx context.Context, siteID uuid.UUID, r models.BlobResult) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.site(siteID)
	if err != nil {
		return err
	}
	b, ok := d.blobs[r.Path]
	if !ok {
		return dberror.ErrNotFound.Msg("blob not found")
	}
	b.ContentHash = r.ContentHash
	b.Size = r.Size
	b.AppPath = r.AppPath
	b.Permalink = r.Permalink
	b.Metadata = copyMap(r.Metadata)
	b.Width = r.Width
	b.Height = r.Height
	b.SyncStatus = types.SyncStatusSuccess
	b.SyncError = nil
	b.UpdatedAt = s.now()
	return nil
}

func (s *Store) FailBlob(ctx context.Context, siteID uuid.UUID, path string, reason string) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.site(siteID)
	if err != nil {
		return err
	}
	b, ok := d.blobs[path]
	if !ok {
		return dberror.ErrNotFound.Msg("blob not found")
	}
	b.SyncStatus = types.SyncStatusError
	b.SyncError = &reason
	b.UpdatedAt = s.now()
	return nil
}

func (s *Store) DeleteBlob(ctx context.Context, siteID uuid.UUID, path string) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.site(siteID)
	if err != nil {
		return err
	}
	if _, ok := d.blobs[path]; !ok {
		return dberror.ErrNotFound.Msg("blob not found")
	}
	delete(d.blobs, path)
	return nil
}

func (s *Store) StalePendingSites(ctx context.Context, olderThan time.Time) ([]uuid.UUID, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []uuid.UUID
	for id, d := range s.sites {
		for _, b := range d.blobs {
			if b.SyncStatus == types.SyncStatusPending && b.UpdatedAt.Before(olderThan) {
				out = append(out, id)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return uuid.Compare(out[i], out[j]) < 0 })
	return out, nil
}

func (s *Store) FailStalePending(ctx context.Context, siteID uuid.UUID, olderThan time.Time, reason string) (int64, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.site(siteID)
	if err != nil {
		return 0, err
	}
	var n int64
	now := s.now()
	for _, b := range d.blobs {
		if b.SyncStatus == types.SyncStatusPending && b.UpdatedAt.Before(olderThan) {
			r := reason
			b.SyncStatus = types.SyncStatusError
			b.SyncError = &r
			b.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateRun(ctx context.Context, run *models.SyncRun) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.site(run.SiteID)
	if err != nil {
		return err
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	if run.State == "" {
		run.State = types.RunStateRunning
	}
	r := *run
	d.runs = append(d.runs, &r)
	return nil
}

func (s *Store) FinishRun(ctx context.Context, run *models.SyncRun) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.site(run.SiteID)
	if err != nil {
		return err
	}
	for i, r := range d.runs {
		if r.ID == run.ID {
			if run.CompletedAt == nil {
				now := s.now()
				run.CompletedAt = &now
			}
			c := *run
			d.runs[i] = &c
			return nil
		}
	}
	return dberror.ErrNotFound.Msg("run not found")
}

func (s *Store) ListRuns(ctx context.Context, siteID uuid.UUID, limit int) ([]*models.SyncRun, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.site(siteID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.SyncRun, 0, len(d.runs))
	for i := len(d.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		r := *d.runs[i]
		out = append(out, &r)
	}
	return out, nil
}

func copySite(s *models.Site) *models.Site {
	c := *s
	c.ContentInclude = append([]string(nil), s.ContentInclude...)
	c.ContentExclude = append([]string(nil), s.ContentExclude...)
	c.PasswordHash = append([]byte(nil), s.PasswordHash...)
	return &c
}

func copyBlob(b *models.Blob) *models.Blob {
	c := *b
	c.Metadata = copyMap(b.Metadata)
	return &c
}

// copyMap copies the top level of m; nested values are treated as immutable.
func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
