package objectstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowershow/contentsync/internal/common/uuid"
)

func TestKey(t *testing.T) {
	id := uuid.MustParse("0190f1a2-0000-7000-8000-000000000001")
	assert.Equal(t, "0190f1a2-0000-7000-8000-000000000001/main/raw/blog/post.md", Key(id, "main", "blog/post.md"))
	assert.Equal(t, "0190f1a2-0000-7000-8000-000000000001/main/raw/a.md", Key(id, "main", "/a.md"))
	assert.True(t, strings.HasPrefix(Key(id, "dev", "x.png"), SitePrefix(id)))
}

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	data := []byte("hello")
	require.NoError(t, m.Put(ctx, "s1/main/raw/a.md", data))
	data[0] = 'j'
	got, err := m.Get(ctx, "s1/main/raw/a.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = m.Get(ctx, "s1/main/raw/missing.md")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	assert.ErrorIs(t, m.Put(ctx, "../etc/passwd", data), ErrInvalidKey)
	assert.ErrorIs(t, m.Put(ctx, "", data), ErrInvalidKey)

	require.NoError(t, m.Put(ctx, "s1/main/raw/b.md", data))
	require.NoError(t, m.Put(ctx, "s2/main/raw/a.md", data))
	require.NoError(t, m.Delete(ctx, "s1/main/raw/a.md"))
	require.NoError(t, m.Delete(ctx, "s1/main/raw/a.md"))
	assert.Equal(t, 2, m.Len())

	require.NoError(t, m.DeletePrefix(ctx, "s1/"))
	assert.Equal(t, 1, m.Len())
	assert.ErrorIs(t, m.DeletePrefix(ctx, ""), ErrInvalidKey)
}

func TestPresign(t *testing.T) {
	ctx := context.Background()
	p := NewPresigner("0123456789abcdef0123", "https://cloud.flowershow.app/")
	s := New(NewMemoryBackend(), p)

	url, err := s.PresignGet(ctx, "s1/main/raw/a.md", time.Minute)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "https://cloud.flowershow.app/raw/"))

	token := strings.TrimPrefix(url, "https://cloud.flowershow.app/raw/")
	key, err := p.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "s1/main/raw/a.md", key)

	_, err = p.Verify(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewPresigner("another-secret-value-000", "http://localhost")
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.PresignGet(ctx, "../x", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestPresignExpiry(t *testing.T) {
	p := NewPresigner("0123456789abcdef0123", "http://localhost")
	now := time.Now()
	p.now = func() time.Time { return now }
	token, err := p.Token("s1/main/raw/a.md", time.Minute)
	require.NoError(t, err)

	p.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = p.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	p := NewPresigner("0123456789abcdef0123", "http://localhost")
	s := New(NewMemoryBackend(), p)
	require.NoError(t, s.Put(ctx, "s1/main/raw/a.md", []byte("# A")))

	token, err := p.Token("s1/main/raw/a.md", time.Minute)
	require.NoError(t, err)
	key, data, err := s.Open(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "s1/main/raw/a.md", key)
	assert.Equal(t, "# A", string(data))

	token, err = p.Token("s1/main/raw/gone.md", time.Minute)
	require.NoError(t, err)
	_, _, err = s.Open(ctx, token)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, _, err = s.Open(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
