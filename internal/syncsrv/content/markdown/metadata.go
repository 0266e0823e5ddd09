package markdown

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Metadata holds front matter fields. Values are always one of string, bool,
// int64, float64, []any, map[string]any or nil; see Normalize. Known fields
// have typed accessors, everything else is passed through to rendering.
type Metadata map[string]any

const (
	FieldTitle       = "title"
	FieldPublish     = "publish"
	FieldPermalink   = "permalink"
	FieldDescription = "description"
	FieldAuthors     = "authors"
	FieldDate        = "date"
)

// Normalize converts decoded YAML into the closed set of Metadata value kinds.
func Normalize(m map[string]any) Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, int64, float64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		if t > math.MaxInt64 {
			return float64(t)
		}
		return int64(t)
	case uint:
		return int64(t)
	case float32:
		return float64(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		return map[string]any(Normalize(t))
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalizeValue(e)
		}
		return out
	default:
		return fmt.Sprint(t)
	}
}

// String returns the field as a string. Scalars are formatted, other kinds
// report false.
func (m Metadata) String(key string) (string, bool) {
	switch t := m[key].(type) {
	case string:
		return t, true
	case bool, int64, float64:
		return fmt.Sprint(t), true
	default:
		return "", false
	}
}

func (m Metadata) Title() string {
	s, _ := m.String(FieldTitle)
	return s
}

// Publish reports false only when the field is the boolean false.
func (m Metadata) Publish() bool {
	b, ok := m[FieldPublish].(bool)
	return !ok || b
}

// Permalink returns the normalized permalink, or nil when the field is
// missing or not a string.
func (m Metadata) Permalink() *string {
	s, ok := m[FieldPermalink].(string)
	if !ok {
		return nil
	}
	p := NormalizePermalink(s)
	return &p
}

func (m Metadata) Description() string {
	s, _ := m[FieldDescription].(string)
	return s
}

// Authors accepts either a single author or a list of them.
func (m Metadata) Authors() []string {
	switch t := m[FieldAuthors].(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		var out []string
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (m Metadata) Date() (time.Time, bool) {
	s, ok := m[FieldDate].(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Clone returns a shallow copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
