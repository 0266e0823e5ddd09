// Package datapackage reads Frictionless data package descriptors and merges
// them into the metadata of the page that documents the dataset.
package datapackage

import (
	"path"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
	"sigs.k8s.io/yaml"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/syncsrv/content/markdown"
)

var (
	ErrDataPackage       apperrors.Error = markdown.ErrParse.New("invalid data package")
	ErrUnsupportedFormat apperrors.Error = ErrDataPackage.New("unsupported data package format")
)

const (
	FieldDataPackage = "datapackage"
	FieldPageType    = "pagetype"
	PageTypeDataset  = "dataset"
)

var descriptorRe = regexp.MustCompile(`(^|/)datapackage\.(json|ya?ml)$`)

// pageNames are the pages a descriptor in the same directory attaches to.
var pageNames = []string{"README.md", "index.md"}

// IsDescriptor reports whether p names a data package descriptor.
func IsDescriptor(p string) bool {
	return descriptorRe.MatchString(p)
}

// IsDatasetPage reports whether p can carry a data package.
func IsDatasetPage(p string) bool {
	base := path.Base(p)
	for _, name := range pageNames {
		if base == name {
			return true
		}
	}
	return false
}

// SiblingPages lists the page paths a descriptor attaches to, in preference order.
func SiblingPages(descriptorPath string) []string {
	dir := path.Dir(descriptorPath)
	out := make([]string, 0, len(pageNames))
	for _, name := range pageNames {
		out = append(out, join(dir, name))
	}
	return out
}

// SiblingDescriptors lists the descriptor paths that may sit next to a page.
func SiblingDescriptors(pagePath string) []string {
	dir := path.Dir(pagePath)
	return []string{
		join(dir, "datapackage.json"),
		join(dir, "datapackage.yaml"),
		join(dir, "datapackage.yml"),
	}
}

func join(dir, name string) string {
	if dir == "." || dir == "" {
		return name
	}
	return dir + "/" + name
}

// Parse decodes a JSON or YAML descriptor into normalized metadata values.
func Parse(content []byte, ext string) (map[string]any, error) {
	var raw map[string]any
	switch markdown.Ext("x." + ext) {
	case "json":
		if err := json.Unmarshal(content, &raw); err != nil {
			return nil, ErrDataPackage.Err(err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, ErrDataPackage.Err(err)
		}
	default:
		return nil, ErrUnsupportedFormat
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return map[string]any(markdown.Normalize(raw)), nil
}

// Apply merges a descriptor into a parsed page. A "datapackage" front matter
// field takes precedence over the descriptor file. The descriptor title and
// description fill in only what the front matter leaves unset, and resource
// entries gain the size and format of the files they reference.
func Apply(res *markdown.Result, pkg map[string]any, sizes map[string]int64, pageDir string) {
	if res == nil || pkg == nil {
		return
	}
	if fm, ok := res.Metadata[FieldDataPackage].(map[string]any); ok {
		pkg = fm
	}
	if res.TitleSource != markdown.TitleFromFrontMatter {
		if t, ok := pkg["title"].(string); ok && t != "" {
			res.SetTitle(t, markdown.TitleFromDataPackage)
		}
	}
	if res.Metadata.Description() == "" {
		if d, ok := pkg["description"].(string); ok && d != "" {
			res.Metadata[markdown.FieldDescription] = d
		}
	}
	if resources, ok := pkg["resources"].([]any); ok {
		for _, r := range resources {
			entry, ok := r.(map[string]any)
			if !ok {
				continue
			}
			p, ok := entry["path"].(string)
			if !ok {
				continue
			}
			full := join(pageDir, p)
			if strings.HasPrefix(p, "/") {
				full = strings.TrimPrefix(p, "/")
			}
			if size, ok := sizes[full]; ok {
				entry["size"] = size
				entry["format"] = markdown.Ext(p)
			}
		}
	}
	res.Metadata[FieldDataPackage] = pkg
	res.Metadata[FieldPageType] = PageTypeDataset
}
