package markdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePublishFlag(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"absent field defaults to published", "---\ntitle: A\n---\nbody", true},
		{"no front matter", "body only", true},
		{"explicit false", "---\npublish: false\n---\nbody", false},
		{"explicit true", "---\npublish: true\n---\nbody", true},
		{"string false is not boolean false", "---\npublish: \"false\"\n---\nbody", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse([]byte(tt.src), "a.md")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.ShouldPublish)
			assert.Equal(t, tt.want, res.Metadata[FieldPublish])
		})
	}
}

func TestParseTitleOrder(t *testing.T) {
	res, err := Parse([]byte("# Real Title\nbody"), "notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, "Real Title", res.Title)

	res, err = Parse([]byte("---\ntitle: FM Title\n---\n# Real Title\nbody"), "notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, "FM Title", res.Title)
	assert.Equal(t, "FM Title", res.Metadata[FieldTitle])

	res, err = Parse([]byte(""), "notes/my-note.md")
	require.NoError(t, err)
	assert.Equal(t, "my-note", res.Title)

	res, err = Parse([]byte("---\ntitle: \"\"\n---\n"), "notes/page.mdx")
	require.NoError(t, err)
	assert.Equal(t, "page", res.Title)

	// only a heading that opens the body counts
	res, err = Parse([]byte("intro\n# Later Heading"), "notes/late.md")
	require.NoError(t, err)
	assert.Equal(t, "late", res.Title)
}

func TestExtractTitle(t *testing.T) {
	tests := map[string]string{
		"# Plain":                          "Plain",
		"\n\n  # Leading space\nrest":       "Leading space",
		"# [[Wiki Page]] notes":            "Wiki Page notes",
		"# **Bold** and _italic_ ~~gone~~": "Bold and italic gone",
		"# See [the docs](https://x.y/z)":  "See the docs",
		"# `code` > quote":                 "code > quote",
		"# > Quoted":                       "Quoted",
		"# snake_case title":               "snake_case title",
		"# __init__ and my_var_name":       "init and my_var_name",
		"# 2 * 3 * 4":                      "2 * 3 * 4",
		"# a*b*c":                          "abc",
		"## Second level":                  "",
		"#NoSpace":                         "",
		"plain paragraph":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractTitle(in), in)
	}
}

func TestParsePermalink(t *testing.T) {
	res, err := Parse([]byte("---\npermalink: /docs/intro/\n---\n"), "a.md")
	require.NoError(t, err)
	require.NotNil(t, res.Permalink)
	assert.Equal(t, "docs/intro", *res.Permalink)

	res, err = Parse([]byte("---\npermalink: 42\n---\n"), "a.md")
	require.NoError(t, err)
	assert.Nil(t, res.Permalink)

	res, err = Parse([]byte("no front matter"), "a.md")
	require.NoError(t, err)
	assert.Nil(t, res.Permalink)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("---\ntitle: [unclosed\n---\nbody"), "a.md")
	assert.ErrorIs(t, err, ErrParse)

	_, err = Parse([]byte("---\ntitle: x\nbody without closing"), "a.md")
	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, ErrUnterminatedFrontMatter)

	_, err = Parse([]byte("---\n- a\n- b\n---\n"), "a.md")
	assert.ErrorIs(t, err, ErrInvalidFrontMatter)
}

func TestParseBody(t *testing.T) {
	res, err := Parse([]byte("\xEF\xBB\xBF---\r\ntitle: T\r\n---\r\nHello\n"), "a.md")
	require.NoError(t, err)
	assert.Equal(t, "T", res.Title)
	assert.Equal(t, "Hello\n", res.Body)

	res, err = Parse([]byte("---\ntitle: T\n...\nafter"), "a.md")
	require.NoError(t, err)
	assert.Equal(t, "after", res.Body)
}

func TestMetadataAccessors(t *testing.T) {
	src := `---
title: Post
description: A post
authors:
  - alice
  - bob
date: 2024-01-15
tags: [go, sync]
count: 3
ratio: 0.5
nested:
  key: value
---
`
	res, err := Parse([]byte(src), "blog/post.md")
	require.NoError(t, err)
	m := res.Metadata

	assert.Equal(t, "A post", m.Description())
	assert.Equal(t, []string{"alice", "bob"}, m.Authors())
	d, ok := m.Date()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), d.UTC())
	assert.Equal(t, []any{"go", "sync"}, m["tags"])
	assert.Equal(t, int64(3), m["count"])
	assert.Equal(t, 0.5, m["ratio"])
	assert.Equal(t, map[string]any{"key": "value"}, m["nested"])

	single := Metadata{FieldAuthors: "carol"}
	assert.Equal(t, []string{"carol"}, single.Authors())
	_, ok = Metadata{}.Date()
	assert.False(t, ok)
}

func TestTitleSource(t *testing.T) {
	res, err := Parse([]byte("---\ntitle: FM\n---\n"), "a.md")
	require.NoError(t, err)
	assert.Equal(t, TitleFromFrontMatter, res.TitleSource)

	res, err = Parse([]byte("# Heading"), "a.md")
	require.NoError(t, err)
	assert.Equal(t, TitleFromHeading, res.TitleSource)

	res, err = Parse([]byte("text"), "a.md")
	require.NoError(t, err)
	assert.Equal(t, TitleFromPath, res.TitleSource)

	res.SetTitle("Dataset", TitleFromFrontMatter)
	assert.Equal(t, "Dataset", res.Metadata[FieldTitle])
}
