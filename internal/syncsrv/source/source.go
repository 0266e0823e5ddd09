// Package source lists and fetches the raw files of a site from where they
// live: a GitHub repository or the object store for uploaded sites.
package source

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/syncsrv/content/markdown"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
	"github.com/flowershow/contentsync/internal/syncsrv/diff"
	"github.com/flowershow/contentsync/pkg/types"
)

var (
	ErrFetch          apperrors.Error = apperrors.New("unable to fetch content").SetStatusCode(http.StatusBadGateway)
	ErrSourceNotFound apperrors.Error = ErrFetch.New("file not found in source").SetStatusCode(http.StatusNotFound)
	ErrListing        apperrors.Error = ErrFetch.New("unable to list source files")
	ErrTooManyFiles   apperrors.Error = ErrListing.New("too many files").SetStatusCode(http.StatusRequestEntityTooLarge)
	ErrNoSource       apperrors.Error = apperrors.New("no source for site").SetStatusCode(http.StatusUnprocessableEntity)
)

type Source interface {
	// ListFiles returns the complete visible listing of the site.
	ListFiles(ctx context.Context, site *models.Site) ([]diff.Entry, apperrors.Error)
	Fetch(ctx context.Context, site *models.Site, filePath string) ([]byte, apperrors.Error)
}

// ObjectBacked is implemented by sources that read from the object store.
// Files fetched from them are already stored and are not written back.
type ObjectBacked interface {
	ObjectBacked() bool
}

// IsObjectBacked reports whether s reads from the object store.
func IsObjectBacked(s Source) bool {
	ob, ok := s.(ObjectBacked)
	return ok && ob.ObjectBacked()
}

type Resolver interface {
	For(site *models.Site) (Source, apperrors.Error)
}

// Mux picks the source matching the site's source kind.
type Mux struct {
	GitHub   Source
	Uploaded Source
}

func (m *Mux) For(site *models.Site) (Source, apperrors.Error) {
	var s Source
	switch site.Source.Kind {
	case types.SourceGitHub:
		s = m.GitHub
	case types.SourceUploaded:
		s = m.Uploaded
	}
	if s == nil {
		return nil, ErrNoSource.Msg("no source configured for kind " + string(site.Source.Kind))
	}
	return s, nil
}

// supportedExtensions lists the file types that are synced. Everything else
// in a repository is ignored.
var supportedExtensions = map[string]bool{
	"md": true, "mdx": true,
	"json": true, "yaml": true, "yml": true, "csv": true, "geojson": true, "base": true,
	"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true, "svg": true,
	"bmp": true, "tif": true, "tiff": true, "avif": true, "ico": true,
	"pdf": true, "mp4": true, "webm": true, "mp3": true,
}

func IsSupported(p string) bool {
	return supportedExtensions[markdown.Ext(p)]
}

// Filter decides which repository paths belong to a site.
type Filter struct {
	RootDir string
	Include []string
	Exclude []string
}

func FilterFor(site *models.Site) Filter {
	return Filter{
		RootDir: site.Source.RootDir,
		Include: site.ContentInclude,
		Exclude: site.ContentExclude,
	}
}

// Root returns the root directory in "dir/" form, or "" for the repository root.
func (f Filter) Root() string {
	r := strings.Trim(strings.TrimSpace(f.RootDir), "/")
	if r == "" || r == "." {
		return ""
	}
	return r + "/"
}

// Visible reports whether a repository path is synced and returns its path
// relative to the root directory.
func (f Filter) Visible(repoPath string) (string, bool) {
	if !IsSupported(repoPath) {
		return "", false
	}
	if len(f.Include) > 0 && !matchAny(repoPath, f.Include) {
		return "", false
	}
	if matchAny(repoPath, f.Exclude) {
		return "", false
	}
	root := f.Root()
	if !strings.HasPrefix(repoPath, root) {
		return "", false
	}
	return strings.TrimPrefix(repoPath, root), true
}

// RepoPath maps a site path back to its repository path.
func (f Filter) RepoPath(sitePath string) string {
	return f.Root() + strings.TrimPrefix(sitePath, "/")
}

// matchAny reports whether p equals a pattern, sits below a pattern
// directory or matches it as a glob.
func matchAny(p string, patterns []string) bool {
	for _, pat := range patterns {
		pat = strings.Trim(strings.TrimSpace(pat), "/")
		if pat == "" {
			continue
		}
		if p == pat || strings.HasPrefix(p, pat+"/") {
			return true
		}
		if ok, _ := path.Match(pat, p); ok {
			return true
		}
	}
	return false
}
