// Package markdown parses Markdown and MDX source files: it separates the YAML
// front matter from the body and resolves the title, publish flag and
// permalink of the page.
package markdown

import (
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type Result struct {
	Metadata      Metadata
	Body          string
	Permalink     *string
	ShouldPublish bool
	Title         string
	TitleSource   TitleSource
}

// TitleSource records where the title was found.
type TitleSource int

const (
	TitleFromPath TitleSource = iota
	TitleFromHeading
	TitleFromFrontMatter
	TitleFromDataPackage
)

// Extensions that are parsed as Markdown.
var Extensions = map[string]bool{
	"md":  true,
	"mdx": true,
}

// IsMarkdown reports whether the path has a Markdown extension.
func IsMarkdown(p string) bool {
	return Extensions[Ext(p)]
}

// Ext returns the lower cased extension of p without the dot.
func Ext(p string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

// Parse parses src, the content of the file at path. The returned metadata
// always carries the resolved "title" and "publish" fields.
func Parse(src []byte, filePath string) (*Result, error) {
	matter, body, err := splitFrontMatter(src)
	if err != nil {
		return nil, err
	}

	raw := map[string]any{}
	if len(strings.TrimSpace(string(matter))) > 0 {
		var decoded any
		if err := yaml.Unmarshal(matter, &decoded); err != nil {
			return nil, ErrParse.Err(err)
		}
		switch t := decoded.(type) {
		case nil:
		case map[string]any:
			raw = t
		case map[any]any:
			raw = normalizeValue(t).(map[string]any)
		default:
			return nil, ErrInvalidFrontMatter
		}
	}
	metadata := Normalize(raw)

	title, source := metadata.Title(), TitleFromFrontMatter
	if title == "" {
		title, source = ExtractTitle(string(body)), TitleFromHeading
	}
	if title == "" {
		title, source = titleFromPath(filePath), TitleFromPath
	}
	publish := metadata.Publish()

	metadata[FieldTitle] = title
	metadata[FieldPublish] = publish

	return &Result{
		Metadata:      metadata,
		Body:          string(body),
		Permalink:     metadata.Permalink(),
		ShouldPublish: publish,
		Title:         title,
		TitleSource:   source,
	}, nil
}

var (
	headingRe  = regexp.MustCompile(`^#[ ]+(.*)`)
	wikilinkRe = regexp.MustCompile(`\[\[([\s\S]*?)]]`)
	linkRe     = regexp.MustCompile(`\[(.*?)\]\(.*?\)`)
	codeRe     = regexp.MustCompile("`([^`]*)`")
	quoteRe    = regexp.MustCompile(`^(?:>[ ]?)+`)

	// Asterisk and tilde markers pair anywhere. Underscore markers only
	// count at word boundaries, so snake_case survives.
	emphasisRes = []*regexp.Regexp{
		regexp.MustCompile(`\*\*(\S(?:.*?\S)?)\*\*`),
		regexp.MustCompile(`\*(\S(?:.*?\S)?)\*`),
		regexp.MustCompile(`~~(\S(?:.*?\S)?)~~`),
	}
	underscoreRes = []*regexp.Regexp{
		regexp.MustCompile(`(^|[^\pL\pN_])__(\S(?:.*?\S)?)__($|[^\pL\pN_])`),
		regexp.MustCompile(`(^|[^\pL\pN_])_(\S(?:.*?\S)?)_($|[^\pL\pN_])`),
	}
)

// stripInline removes inline code, emphasis and blockquote markers from a
// single line of Markdown and keeps the text they wrap.
func stripInline(s string) string {
	s = quoteRe.ReplaceAllString(s, "")
	s = codeRe.ReplaceAllString(s, "$1")
	for _, re := range emphasisRes {
		s = re.ReplaceAllString(s, "$1")
	}
	for _, re := range underscoreRes {
		s = re.ReplaceAllString(s, "$1$2$3")
	}
	return s
}

// ExtractTitle returns the text of a level 1 heading that opens the body,
// with wikilink brackets, emphasis markers and link syntax removed. It
// returns "" when the body does not start with such a heading.
func ExtractTitle(body string) string {
	m := headingRe.FindStringSubmatch(strings.TrimSpace(body))
	if m == nil || m[1] == "" {
		return ""
	}
	title := m[1]
	if loc := wikilinkRe.FindStringSubmatchIndex(title); loc != nil {
		title = title[:loc[0]] + title[loc[2]:loc[3]] + title[loc[1]:]
	}
	title = stripInline(title)
	title = linkRe.ReplaceAllString(title, "$1")
	return strings.TrimSpace(title)
}

// SetTitle overrides the resolved title.
func (r *Result) SetTitle(title string, source TitleSource) {
	r.Title = title
	r.TitleSource = source
	r.Metadata[FieldTitle] = title
}

// NormalizePermalink strips leading and trailing slashes.
func NormalizePermalink(p string) string {
	return strings.Trim(p, "/")
}

func titleFromPath(p string) string {
	name := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	lower := strings.ToLower(name)
	for _, ext := range []string{".mdx", ".md"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}
