// Package permalink maps repository paths to the URL paths pages are served at.
package permalink

import (
	"path"
	"strings"
)

// Root is the app path of the site home page.
const Root = "/"

var indexNames = []string{"index", "README"}

// AppPath returns the app facing path of a Markdown file: the extension is
// dropped, a trailing index or README segment collapses into its directory
// and the result has no leading slash, except for the site root which is
// "/". Non Markdown files have no app path and are served by raw path.
func AppPath(filePath string) *string {
	p := CleanPath(filePath)
	ext := strings.ToLower(path.Ext(p))
	if ext != ".md" && ext != ".mdx" {
		return nil
	}
	p = strings.TrimSuffix(p, path.Ext(p))
	for _, name := range indexNames {
		if p == name {
			p = ""
			break
		}
		if strings.HasSuffix(p, "/"+name) {
			p = strings.TrimSuffix(p, "/"+name)
			break
		}
	}
	if p == "" {
		root := Root
		return &root
	}
	return &p
}

// Resolve returns the canonical public URL path for a file. An explicit
// permalink wins over the app path; assets pass through with their raw path.
func Resolve(filePath string, explicit *string) string {
	if explicit != nil {
		p := strings.Trim(*explicit, "/")
		return "/" + p
	}
	if app := AppPath(filePath); app != nil {
		if *app == Root {
			return Root
		}
		return "/" + *app
	}
	return "/" + CleanPath(filePath)
}

// CleanPath converts backslashes to forward slashes and removes leading
// slashes and "./" segments so paths compare consistently.
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}
