// Package diff compares the files tracked for a site with a new listing and
// decides which files to create, update or delete.
package diff

import (
	"sort"

	"github.com/flowershow/contentsync/internal/syncsrv/content/permalink"
)

type Mode int

const (
	// Full listings are authoritative: tracked paths missing from them are deleted.
	Full Mode = iota
	// Partial listings only add or update the files they name.
	Partial
)

func (m Mode) String() string {
	if m == Partial {
		return "partial"
	}
	return "full"
}

// Entry is one file of an incoming listing. An empty ContentHash means the
// source could not provide one and the file is always updated.
type Entry struct {
	Path        string `json:"path"`
	ContentHash string `json:"contentHash,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Tracked is the stored state of a previously seen file.
type Tracked struct {
	ContentHash string
	// Synced is false for files whose last sync did not succeed; those are
	// always revisited.
	Synced bool
}

type Options struct {
	Mode Mode
	// Force updates every tracked file regardless of its hash.
	Force bool
}

type Result struct {
	ToCreate  []Entry
	ToUpdate  []Entry
	ToDelete  []string
	Unchanged []string
}

// Changed reports whether the result requires any work.
func (r Result) Changed() bool {
	return len(r.ToCreate)+len(r.ToUpdate)+len(r.ToDelete) > 0
}

// NormalizePath puts p in the form paths are stored and compared in:
// forward slashes, no leading slash or dot segments. The bytes of each
// segment are kept as the source spells them so the path can be fetched back.
func NormalizePath(p string) string {
	return permalink.CleanPath(p)
}

// Compute diffs incoming against previous. Paths are compared case
// sensitively after normalization. When incoming names a path more than once
// the last entry wins. Output slices are sorted by path.
func Compute(previous map[string]Tracked, incoming []Entry, opts Options) Result {
	prev := make(map[string]Tracked, len(previous))
	for p, t := range previous {
		prev[NormalizePath(p)] = t
	}

	seen := make(map[string]Entry, len(incoming))
	for _, e := range incoming {
		e.Path = NormalizePath(e.Path)
		if e.Path == "" {
			continue
		}
		seen[e.Path] = e
	}

	var res Result
	for p, e := range seen {
		t, tracked := prev[p]
		switch {
		case !tracked:
			res.ToCreate = append(res.ToCreate, e)
		case opts.Force, e.ContentHash == "", !t.Synced, t.ContentHash != e.ContentHash:
			res.ToUpdate = append(res.ToUpdate, e)
		default:
			res.Unchanged = append(res.Unchanged, p)
		}
	}
	if opts.Mode == Full {
		for p := range prev {
			if _, ok := seen[p]; !ok {
				res.ToDelete = append(res.ToDelete, p)
			}
		}
	}

	sortEntries(res.ToCreate)
	sortEntries(res.ToUpdate)
	sort.Strings(res.ToDelete)
	sort.Strings(res.Unchanged)
	return res
}

func sortEntries(e []Entry) {
	sort.Slice(e, func(i, j int) bool { return e[i].Path < e[j].Path })
}
