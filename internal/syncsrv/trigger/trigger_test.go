package trigger

import (
	"context"
	"encoding/base64"
	"net/http"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/ratelimit"
	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/internal/syncsrv/db/memstore"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
	"github.com/flowershow/contentsync/internal/syncsrv/diff"
	"github.com/flowershow/contentsync/internal/syncsrv/objectstore"
	"github.com/flowershow/contentsync/internal/syncsrv/orchestrator"
	"github.com/flowershow/contentsync/internal/syncsrv/runlock"
	"github.com/flowershow/contentsync/internal/syncsrv/searchindex"
	"github.com/flowershow/contentsync/internal/syncsrv/source"
	"github.com/flowershow/contentsync/pkg/types"
)

type repoSource map[string]string

func (r repoSource) ListFiles(ctx context.Context, site *models.Site) ([]diff.Entry, apperrors.Error) {
	var out []diff.Entry
	for p, c := range r {
		out = append(out, diff.Entry{Path: p, ContentHash: orchestrator.GitBlobHash([]byte(c)), Size: int64(len(c))})
	}
	return out, nil
}

func (r repoSource) Fetch(ctx context.Context, site *models.Site, p string) ([]byte, apperrors.Error) {
	c, ok := r[p]
	if !ok {
		return nil, source.ErrSourceNotFound
	}
	return []byte(c), nil
}

type env struct {
	ctx     context.Context
	store   *memstore.Store
	objects *objectstore.MemoryBackend
	orch    *orchestrator.Orchestrator
	d       *Dispatcher
}

func newEnv(t *testing.T, limiter ratelimit.Limiter, opts Options) *env {
	e := &env{
		ctx:     log.Logger.WithContext(context.Background()),
		store:   memstore.New(),
		objects: objectstore.NewMemoryBackend(),
	}
	mux := &source.Mux{
		GitHub:   repoSource{"README.md": "# Garden", "notes/a.md": "# A"},
		Uploaded: source.NewUploaded(e.objects, e.store),
	}
	e.orch = orchestrator.New(e.store, mux, e.objects, searchindex.NewMemoryIndex(), runlock.NewMemoryLocker(), orchestrator.Options{})
	e.d = New(e.orch, e.store, e.objects, limiter, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, e.d.Wait(ctx))
	})
	return e
}

func (e *env) githubSite(t *testing.T, repo, branch string) *models.Site {
	site, err := e.d.CreateSite(e.ctx, CreateSiteRequest{UserID: "user-1", Kind: types.SourceGitHub, Repository: repo, Branch: branch})
	require.NoError(t, err)
	return site
}

func (e *env) paths(t *testing.T, siteID uuid.UUID) []string {
	blobs, err := e.store.ListBlobs(e.ctx, siteID)
	require.NoError(t, err)
	var out []string
	for _, b := range blobs {
		out = append(out, b.Path)
	}
	sort.Strings(out)
	return out
}

func (e *env) wait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.d.Wait(ctx))
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestParsePushEvent(t *testing.T) {
	ev, err := ParsePushEvent([]byte(`{"ref": "refs/heads/main", "after": "abc", "repository": {"full_name": "octo/garden"}}`))
	require.NoError(t, err)
	assert.Equal(t, "octo/garden", ev.Repository)
	assert.Equal(t, "main", ev.Branch())
	assert.False(t, ev.Deleted)

	ev, err = ParsePushEvent([]byte(`{"ref": "refs/tags/v1", "repository": {"full_name": "octo/garden"}}`))
	require.NoError(t, err)
	assert.Empty(t, ev.Branch())

	_, err = ParsePushEvent([]byte(`{"ref":`))
	assert.ErrorIs(t, err, ErrInvalidEvent)
	_, err = ParsePushEvent([]byte(`{"zen": "Keep it logically awesome."}`))
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestWebhookRouting(t *testing.T) {
	e := newEnv(t, nil, Options{})
	main1 := e.githubSite(t, "octo/garden", "main")
	main2 := e.githubSite(t, "octo/garden", "")
	dev := e.githubSite(t, "octo/garden", "dev")
	other := e.githubSite(t, "octo/other", "main")

	ids, err := e.d.Webhook(e.ctx, PushEvent{Repository: "octo/garden", Ref: "refs/heads/main"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{main1.ID, main2.ID}, ids)
	e.wait(t)

	for _, s := range []*models.Site{main1, main2} {
		runs, err := e.store.ListRuns(e.ctx, s.ID, 0)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, types.TriggerWebhook, runs[0].Trigger)
		assert.Equal(t, types.RunOutcomeComplete, runs[0].Outcome)
		assert.Equal(t, []string{"README.md", "notes/a.md"}, e.paths(t, s.ID))
	}
	for _, s := range []*models.Site{dev, other} {
		runs, err := e.store.ListRuns(e.ctx, s.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, runs)
	}

	ids, err = e.d.Webhook(e.ctx, PushEvent{Repository: "octo/garden", Ref: "refs/tags/v1.0"})
	require.NoError(t, err)
	assert.Empty(t, ids)
	ids, err = e.d.Webhook(e.ctx, PushEvent{Repository: "octo/garden", Ref: "refs/heads/main", Deleted: true})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestForceSync(t *testing.T) {
	e := newEnv(t, nil, Options{})
	site := e.githubSite(t, "octo/garden", "main")

	held, err := e.orch.Begin(e.ctx, site.ID, orchestrator.PolicyQueue)
	require.NoError(t, err)
	_, err = e.d.ForceSync(e.ctx, site.ID, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrAlreadySyncing)
	assert.Equal(t, http.StatusConflict, err.StatusCode())
	require.NoError(t, held.Release(e.ctx))

	acc, err := e.d.ForceSync(e.ctx, site.ID, true)
	require.NoError(t, err)
	require.NotNil(t, acc.Outcome)
	require.NotNil(t, acc.RunID)
	assert.Equal(t, 2, acc.Outcome.Created)

	acc, err = e.d.ForceSync(e.ctx, site.ID, false)
	require.NoError(t, err)
	assert.Nil(t, acc.Outcome)
	e.wait(t)
	runs, err := e.store.ListRuns(e.ctx, site.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, types.TriggerForce, runs[0].Trigger)
	assert.Equal(t, 2, runs[0].Updated, "force reprocesses unchanged files")

	_, err = e.d.ForceSync(e.ctx, uuid.New(), true)
	assert.ErrorIs(t, err, orchestrator.ErrSiteNotFound)
}

func TestSync(t *testing.T) {
	e := newEnv(t, nil, Options{})
	site := e.githubSite(t, "octo/garden", "main")
	acc, err := e.d.Sync(e.ctx, site.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, acc.Outcome.Created)
	acc, err = e.d.Sync(e.ctx, site.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, acc.Outcome.Unchanged)
}

func TestRateLimited(t *testing.T) {
	limiter := ratelimit.NewKeyedLimiter(ratelimit.Config{Requests: 1, Window: time.Hour})
	t.Cleanup(limiter.Stop)
	e := newEnv(t, limiter, Options{})
	site := e.githubSite(t, "octo/garden", "main")
	other := e.githubSite(t, "octo/garden", "dev")

	_, err := e.d.ForceSync(e.ctx, site.ID, true)
	require.NoError(t, err)
	_, err = e.d.ForceSync(e.ctx, site.ID, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, http.StatusTooManyRequests, err.StatusCode())

	_, err = e.d.ForceSync(e.ctx, other.ID, true)
	assert.NoError(t, err, "limits are per site")
}

func TestClose(t *testing.T) {
	e := newEnv(t, nil, Options{})
	site := e.githubSite(t, "octo/garden", "main")
	e.d.Close()
	_, err := e.d.ForceSync(e.ctx, site.ID, true)
	assert.ErrorIs(t, err, ErrShuttingDown)
	_, err = e.d.Webhook(e.ctx, PushEvent{Repository: "octo/garden", Ref: "refs/heads/main"})
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestPublishNew(t *testing.T) {
	e := newEnv(t, nil, Options{})
	res, err := e.d.PublishNew(e.ctx, "203.0.113.7", PublishRequest{Files: []PublishFile{
		{Path: "notes/only.md", Content: b64("---\ntitle: Only\n---\nhello")},
		{Path: "/img/pic.svg", Content: b64("<svg/>")},
	}}, true)
	require.NoError(t, err)
	assert.Len(t, res.OwnerToken, ownerTokenSize)
	assert.Equal(t, []string{"notes/only.md", "img/pic.svg"}, res.Files)
	require.NotNil(t, res.Outcome)
	assert.Equal(t, types.RunOutcomeComplete, res.Outcome.Outcome)
	assert.Equal(t, 2, res.Outcome.Created)

	site, err := e.store.GetSite(e.ctx, res.SiteID)
	require.NoError(t, err)
	assert.Equal(t, types.SourceUploaded, site.Source.Kind)
	assert.Equal(t, res.OwnerToken, site.AnonymousOwner)
	assert.Empty(t, site.UserID)

	page, err := e.store.GetBlob(e.ctx, site.ID, "notes/only.md")
	require.NoError(t, err)
	assert.Equal(t, "/", *page.AppPath)
	assert.Equal(t, "Only", page.Metadata["title"])

	_, err = e.d.PublishNew(e.ctx, "203.0.113.7", PublishRequest{Files: []PublishFile{
		{Path: "img/pic.png", Content: b64("x")},
	}}, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPublish)
	assert.Contains(t, err.Error(), "markdown")
}

func TestPublishPartialAndComplete(t *testing.T) {
	e := newEnv(t, nil, Options{})
	res, err := e.d.PublishNew(e.ctx, "client", PublishRequest{Files: []PublishFile{
		{Path: "a.md", Content: b64("# A")},
		{Path: "b.md", Content: b64("# B")},
	}}, true)
	require.NoError(t, err)
	siteID := res.SiteID

	res, err = e.d.Publish(e.ctx, siteID, PublishRequest{Files: []PublishFile{
		{Path: "b.md", Content: b64("# B2")},
	}}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Outcome.Updated)
	assert.Zero(t, res.Outcome.Deleted)
	assert.Empty(t, res.OwnerToken)
	assert.Equal(t, []string{"a.md", "b.md"}, e.paths(t, siteID))

	res, err = e.d.Publish(e.ctx, siteID, PublishRequest{
		Files:    []PublishFile{{Path: "a.md", SHA: orchestrator.GitBlobHash([]byte("# A"))}},
		Complete: true,
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Outcome.Deleted)
	assert.Equal(t, 1, res.Outcome.Unchanged)
	assert.Equal(t, []string{"a.md"}, e.paths(t, siteID))
	_, gerr := e.objects.Get(e.ctx, objectstore.Key(siteID, "main", "b.md"))
	assert.ErrorIs(t, gerr, objectstore.ErrObjectNotFound)

	// background publish
	res, err = e.d.Publish(e.ctx, siteID, PublishRequest{Files: []PublishFile{{Path: "c.md", Content: b64("# C")}}}, false)
	require.NoError(t, err)
	assert.Nil(t, res.Outcome)
	e.wait(t)
	assert.Equal(t, []string{"a.md", "c.md"}, e.paths(t, siteID))
}

func TestPublishRejectsGitHubSite(t *testing.T) {
	e := newEnv(t, nil, Options{})
	site := e.githubSite(t, "octo/garden", "main")
	_, err := e.d.Publish(e.ctx, site.ID, PublishRequest{Files: []PublishFile{{Path: "a.md", Content: b64("# A")}}}, true)
	assert.ErrorIs(t, err, ErrInvalidPublish)

	_, err = e.d.Publish(e.ctx, uuid.New(), PublishRequest{Files: []PublishFile{{Path: "a.md", Content: b64("# A")}}}, true)
	assert.ErrorIs(t, err, orchestrator.ErrSiteNotFound)
}

func TestPrepareValidation(t *testing.T) {
	d := &Dispatcher{opts: Options{MaxFiles: 2, MaxFileSize: 8, MaxTotalSize: 12}}
	tests := []struct {
		name  string
		files []PublishFile
		want  string
	}{
		{"no files", nil, "at least one file"},
		{"too many", []PublishFile{{Path: "a.md"}, {Path: "b.md"}, {Path: "c.md"}}, "maximum 2 files"},
		{"empty path", []PublishFile{{Path: "/"}}, "path is required"},
		{"duplicate", []PublishFile{{Path: "a.md"}, {Path: "./a.md"}}, "duplicate"},
		{"unsupported", []PublishFile{{Path: "main.go"}}, "unsupported file type"},
		{"bad base64", []PublishFile{{Path: "a.md", Content: "%%%"}}, "base64"},
		{"negative size", []PublishFile{{Path: "a.md", Size: -1}}, "negative"},
		{"file too large", []PublishFile{{Path: "a.md", Content: b64("123456789")}}, "too large"},
		{"total too large", []PublishFile{{Path: "a.md", Content: b64("1234567")}, {Path: "b.md", Content: b64("1234567")}}, "total upload size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.prepare(tt.files)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPublish)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}

	uploads, err := d.prepare([]PublishFile{{Path: "docs\\a.md", Content: b64("# A"), Size: 99}, {Path: "b.md", SHA: "abc", Size: 42}})
	require.NoError(t, err)
	assert.Equal(t, "docs/a.md", uploads[0].path)
	assert.Equal(t, orchestrator.GitBlobHash([]byte("# A")), uploads[0].hash)
	assert.Equal(t, int64(3), uploads[0].size, "content length wins over the hint")
	assert.False(t, uploads[1].hasData)
	assert.Equal(t, "abc", uploads[1].hash)
	assert.Equal(t, int64(42), uploads[1].size)
}

func TestCreateSite(t *testing.T) {
	e := newEnv(t, nil, Options{})

	_, err := e.d.CreateSite(e.ctx, CreateSiteRequest{Kind: types.SourceGitHub, Repository: "not a repo"})
	assert.ErrorIs(t, err, ErrInvalidSite)
	_, err = e.d.CreateSite(e.ctx, CreateSiteRequest{Kind: "ftp"})
	assert.ErrorIs(t, err, ErrInvalidSite)
	_, err = e.d.CreateSite(e.ctx, CreateSiteRequest{Kind: types.SourceUploaded, PrivacyMode: types.PrivacyPassword})
	assert.ErrorIs(t, err, ErrInvalidSite)

	site, err := e.d.CreateSite(e.ctx, CreateSiteRequest{
		UserID:      "user-1",
		Kind:        types.SourceGitHub,
		Repository:  "octo/garden",
		RootDir:     "/content/",
		PrivacyMode: types.PrivacyPassword,
		Password:    "hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, "main", site.Source.Branch)
	assert.Equal(t, "content", site.Source.RootDir)
	assert.Equal(t, types.PlanFree, site.Plan)
	assert.Empty(t, site.AnonymousOwner)
	assert.True(t, VerifyPassword(site.PasswordHash, "hunter2"))
	assert.False(t, VerifyPassword(site.PasswordHash, "hunter3"))
}

func TestPasswordHash(t *testing.T) {
	h1, err := HashPassword("secret")
	require.NoError(t, err)
	h2, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2, "salted")
	assert.True(t, VerifyPassword(h1, "secret"))
	assert.False(t, VerifyPassword(h1[:10], "secret"))
}
