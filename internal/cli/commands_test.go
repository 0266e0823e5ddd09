package cli

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const (
	testSiteID = "0190a4c8-5a0e-7d3a-9c1b-3f1e2d4c5b6a"
	// busySiteID reports a running sync on its first two status polls.
	busySiteID = "0190a4c8-5a0e-7d3a-9c1b-000000000002"
)

type recorded struct {
	method string
	path   string
	query  string
	body   []byte
}

type fakeServer struct {
	*httptest.Server
	mu          sync.Mutex
	requests    []recorded
	statusPolls atomic.Int32
}

func newFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"serverVersion": "test server", "apiVersion": "v1"}`)
	})
	mux.HandleFunc("POST /publish", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"siteId": "`+testSiteID+`", "queued": true, "files": ["index.md"], "ownerToken": "tok"}`)
	})
	mux.HandleFunc("POST /sites/{id}/sync", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"siteId": "`+r.PathValue("id")+`", "runId": "r1", "outcome": "complete", "queued": false,
			"counts": {"created": 1, "updated": 0, "deleted": 0, "unchanged": 2, "failed": 0}}`)
	})
	mux.HandleFunc("GET /sites/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == busySiteID {
			syncing := f.statusPolls.Add(1) < 3
			io.WriteString(w, `{"siteId": "`+busySiteID+`", "status": "complete", "syncing": `+strconv.FormatBool(syncing)+`,
				"files": {"total": 0, "pending": 0, "success": 0, "failed": 0}, "blobs": []}`)
			return
		}
		if r.PathValue("id") != testSiteID {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"result": 0, "error": "site not found"}`)
			return
		}
		io.WriteString(w, `{"siteId": "`+testSiteID+`", "status": "error",
			"files": {"total": 2, "pending": 0, "success": 1, "failed": 1},
			"blobs": [{"id": "b1", "path": "index.md", "extension": "md", "syncStatus": "SUCCESS", "syncError": null},
			{"id": "b2", "path": "bad.md", "extension": "md", "syncStatus": "ERROR", "syncError": "invalid front matter"}]}`)
	})
	mux.HandleFunc("GET /sites/{id}/runs", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id": "r1", "siteId": "`+testSiteID+`", "trigger": "cli", "mode": "full", "state": "DONE",
			"outcome": "complete", "counts": {"created": 1, "updated": 0, "deleted": 0, "unchanged": 2, "failed": 0},
			"startedAt": "2026-10-17T10:00:00Z"}]`)
	})
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: body})
		f.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeServer) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// run executes the CLI with a config file in a temporary directory.
func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, server, site string) string {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, (&Config{Version: "1", Server: server, CurrentSite: site}).WriteConfig(cfgPath))
	return cfgPath
}

func TestConfigCreate(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	_, err := run(t, cfgPath, "config", "create", "--server", "localhost:8197", "--site", testSiteID)
	require.NoError(t, err)

	require.NoError(t, LoadConfig(cfgPath))
	assert.Equal(t, "http://localhost:8197", GetConfig().Server)
	assert.Equal(t, testSiteID, GetConfig().CurrentSite)

	_, err = run(t, filepath.Join(t.TempDir(), "c.yaml"), "config", "create")
	assert.Error(t, err)
}

func TestMissingConfig(t *testing.T) {
	_, err := run(t, filepath.Join(t.TempDir(), "missing.yaml"), "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config create")
}

func TestVersion(t *testing.T) {
	srv := newFakeServer(t)
	out, err := run(t, writeConfig(t, srv.URL, ""), "version", "-j")
	require.NoError(t, err)
	assert.Equal(t, "test server", gjson.Get(out, "serverVersion").String())
	assert.Equal(t, Version, gjson.Get(out, "version").String())
}

func TestPublishNewSite(t *testing.T) {
	srv := newFakeServer(t)
	cfgPath := writeConfig(t, srv.URL, "")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.md"), []byte("# Home"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "blog"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog", "post.md"), []byte("post"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "x.md"), []byte("skip"), 0o644))

	out, err := run(t, cfgPath, "publish", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Created site "+testSiteID)

	req := srv.last()
	assert.Equal(t, "/publish", req.path)
	files := gjson.GetBytes(req.body, "files").Array()
	require.Len(t, files, 2)
	assert.Equal(t, "blog/post.md", files[0].Get("path").String())
	assert.Equal(t, "index.md", files[1].Get("path").String())
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("# Home")), files[1].Get("content").String())
	assert.Equal(t, int64(6), files[1].Get("size").Int())
	assert.False(t, gjson.GetBytes(req.body, "complete").Exists())

	require.NoError(t, LoadConfig(cfgPath))
	assert.Equal(t, testSiteID, GetConfig().CurrentSite)
	assert.Equal(t, "tok", GetConfig().OwnerTokens[testSiteID])
}

func TestPublishToCurrentSite(t *testing.T) {
	srv := newFakeServer(t)
	cfgPath := writeConfig(t, srv.URL, testSiteID)
	file := filepath.Join(t.TempDir(), "page.md")
	require.NoError(t, os.WriteFile(file, []byte("hi"), 0o644))

	_, err := run(t, cfgPath, "publish", file, "--complete", "--wait")
	// the fake server has no files route
	require.Error(t, err)
	req := srv.last()
	assert.Equal(t, "/sites/"+testSiteID+"/files", req.path)
	assert.Equal(t, "wait=true", req.query)
	assert.True(t, gjson.GetBytes(req.body, "complete").Bool())
	assert.Equal(t, "page.md", gjson.GetBytes(req.body, "files.0.path").String())

	_, err = run(t, cfgPath, "publish", t.TempDir())
	assert.ErrorContains(t, err, "no publishable files")
}

func TestSyncCommand(t *testing.T) {
	srv := newFakeServer(t)
	cfgPath := writeConfig(t, srv.URL, testSiteID)

	out, err := run(t, cfgPath, "sync", "--force", "--wait")
	require.NoError(t, err)
	req := srv.last()
	assert.Equal(t, "/sites/"+testSiteID+"/sync", req.path)
	assert.Equal(t, "wait=true", req.query)
	assert.JSONEq(t, `{"force": true}`, string(req.body))
	assert.Contains(t, out, "Sync r1: complete")
	assert.Contains(t, out, "unchanged 2")
}

func TestStatusCommand(t *testing.T) {
	srv := newFakeServer(t)
	cfgPath := writeConfig(t, srv.URL, testSiteID)

	out, err := run(t, cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: error")
	assert.Contains(t, out, "bad.md: invalid front matter")
	assert.NotContains(t, out, "index.md")

	out, err = run(t, cfgPath, "status", "-j")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gjson.Get(out, "files.failed").Int())

	_, err = run(t, cfgPath, "status", "0190a4c8-0000-7d3a-9c1b-3f1e2d4c5b6a")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "site not found", httpErr.Message)
}

func TestStatusWaitsForRunningSync(t *testing.T) {
	srv := newFakeServer(t)
	cfgPath := writeConfig(t, srv.URL, busySiteID)

	out, err := run(t, cfgPath, "status", "--wait", "--interval", "1ms", "-j")
	require.NoError(t, err)
	assert.False(t, gjson.Get(out, "syncing").Bool())
	assert.Equal(t, int32(3), srv.statusPolls.Load())

	srv.statusPolls.Store(0)
	out, err = run(t, cfgPath, "status", "-j")
	require.NoError(t, err)
	assert.True(t, gjson.Get(out, "syncing").Bool())
	assert.Equal(t, int32(1), srv.statusPolls.Load())
}

func TestRunsCommand(t *testing.T) {
	srv := newFakeServer(t)
	cfgPath := writeConfig(t, srv.URL, testSiteID)

	out, err := run(t, cfgPath, "runs", "-n", "5")
	require.NoError(t, err)
	assert.Equal(t, "limit=5", srv.last().query)
	assert.Contains(t, out, "cli")
	assert.Contains(t, out, "+1 ~0 -0 !0")
}

func TestServerOverride(t *testing.T) {
	srv := newFakeServer(t)
	out, err := run(t, filepath.Join(t.TempDir(), "none.yaml"), "--server", srv.URL, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Server Version: test server")
}
