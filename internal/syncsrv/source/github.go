package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
	"github.com/flowershow/contentsync/internal/syncsrv/diff"
)

type GitHubOptions struct {
	APIURL        string
	Token         string
	Timeout       time.Duration
	RetryAttempts uint
	// MaxFiles rejects listings with more visible files. Zero disables the check.
	MaxFiles int
	// MaxFileSize skips larger files. Zero disables the check.
	MaxFileSize int64
	HTTPClient  *http.Client
}

// GitHub lists repositories through the git trees API and fetches raw file
// content through the contents API.
type GitHub struct {
	opts   GitHubOptions
	client *http.Client
}

func NewGitHub(opts GitHubOptions) *GitHub {
	if opts.APIURL == "" {
		opts.APIURL = "https://api.github.com"
	}
	opts.APIURL = strings.TrimSuffix(opts.APIURL, "/")
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 1
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &GitHub{opts: opts, client: client}
}

const repoConfigFile = "config.json"

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("github returned %d: %s", e.code, e.body)
}

func (g *GitHub) ListFiles(ctx context.Context, site *models.Site) ([]diff.Entry, apperrors.Error) {
	repo := site.Source.Repository
	branch := site.Branch()
	u := fmt.Sprintf("%s/repos/%s/git/trees/%s?recursive=1", g.opts.APIURL, repo, url.PathEscape(branch))

	body, err := g.get(ctx, u, "application/vnd.github+json")
	if err != nil {
		return nil, ErrListing.MsgErr("unable to list "+repo+"@"+branch, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, ErrListing.Msg("invalid tree response for " + repo)
	}
	// A truncated tree is not a complete listing.
	if gjson.GetBytes(body, "truncated").Bool() {
		log.Ctx(ctx).Error().Str("repository", repo).Msg("github tree listing is truncated")
		return nil, ErrListing.Msg("tree listing for " + repo + "@" + branch + " is truncated")
	}

	filter, aerr := g.filterFor(ctx, site)
	if aerr != nil {
		return nil, aerr
	}
	var entries []diff.Entry
	var listErr apperrors.Error
	gjson.GetBytes(body, "tree").ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").String() != "blob" {
			return true
		}
		sitePath, ok := filter.Visible(item.Get("path").String())
		if !ok {
			return true
		}
		size := item.Get("size").Int()
		if g.opts.MaxFileSize > 0 && size > g.opts.MaxFileSize {
			log.Ctx(ctx).Warn().Str("path", sitePath).Int64("size", size).Msg("skipping file over size limit")
			return true
		}
		entries = append(entries, diff.Entry{
			Path:        sitePath,
			ContentHash: item.Get("sha").String(),
			Size:        size,
		})
		if g.opts.MaxFiles > 0 && len(entries) > g.opts.MaxFiles {
			listErr = ErrTooManyFiles.Msg(fmt.Sprintf("repository has more than %d files", g.opts.MaxFiles))
			return false
		}
		return true
	})
	if listErr != nil {
		return nil, listErr
	}
	return entries, nil
}

// filterFor merges the contentInclude and contentExclude lists of the
// repository's config.json at the synced branch into the site's filter.
// A missing config.json leaves the site filter unchanged.
func (g *GitHub) filterFor(ctx context.Context, site *models.Site) (Filter, apperrors.Error) {
	filter := FilterFor(site)
	u := fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s", g.opts.APIURL, site.Source.Repository,
		repoConfigFile, url.QueryEscape(site.Branch()))

	body, err := g.get(ctx, u, "application/vnd.github.raw+json")
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return filter, nil
		}
		return filter, ErrListing.MsgErr("unable to fetch "+repoConfigFile, err)
	}
	if !gjson.ValidBytes(body) {
		return filter, ErrListing.Msg("invalid " + repoConfigFile + " in " + site.Source.Repository)
	}
	filter.Include = appendStrings(filter.Include, gjson.GetBytes(body, "contentInclude"))
	filter.Exclude = appendStrings(filter.Exclude, gjson.GetBytes(body, "contentExclude"))
	return filter, nil
}

func appendStrings(dst []string, list gjson.Result) []string {
	if !list.IsArray() {
		return dst
	}
	out := append([]string(nil), dst...)
	for _, v := range list.Array() {
		if s := v.String(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (g *GitHub) Fetch(ctx context.Context, site *models.Site, filePath string) ([]byte, apperrors.Error) {
	repoPath := FilterFor(site).RepoPath(filePath)
	segments := strings.Split(repoPath, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	u := fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s", g.opts.APIURL, site.Source.Repository,
		strings.Join(segments, "/"), url.QueryEscape(site.Branch()))

	body, err := g.get(ctx, u, "application/vnd.github.raw+json")
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil, ErrSourceNotFound.Msg("file not found: " + filePath)
		}
		return nil, ErrFetch.MsgErr("unable to fetch "+filePath, err)
	}
	return body, nil
}

// get issues a GET with retries. Client errors other than 429 are not retried.
func (g *GitHub) get(ctx context.Context, u, accept string) ([]byte, error) {
	return retry.DoWithData(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if g.opts.Token != "" {
			req.Header.Set("Authorization", "Bearer "+g.opts.Token)
		}
		rsp, err := g.client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "github request failed")
		}
		defer rsp.Body.Close()
		body, err := io.ReadAll(rsp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "unable to read github response")
		}
		if rsp.StatusCode != http.StatusOK {
			se := &statusError{code: rsp.StatusCode, body: truncate(string(body), 200)}
			if rsp.StatusCode < 500 && rsp.StatusCode != http.StatusTooManyRequests {
				return nil, retry.Unrecoverable(se)
			}
			return nil, se
		}
		return body, nil
	},
		retry.Context(ctx),
		retry.Attempts(g.opts.RetryAttempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Debug().Err(err).Uint("attempt", n+1).Str("url", u).Msg("retrying github request")
		}),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
