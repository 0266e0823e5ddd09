// Package objectstore stores the raw bytes of synced files and hands out
// time limited links to them.
package objectstore

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
)

var (
	ErrObjectStore    apperrors.Error = apperrors.New("object store error").SetStatusCode(http.StatusInternalServerError)
	ErrObjectNotFound apperrors.Error = ErrObjectStore.New("object not found").SetStatusCode(http.StatusNotFound)
	ErrInvalidKey     apperrors.Error = ErrObjectStore.New("invalid object key").SetStatusCode(http.StatusBadRequest)
	ErrInvalidToken   apperrors.Error = ErrObjectStore.New("invalid or expired link").SetStatusCode(http.StatusForbidden)
)

// Backend is the byte storage behind a Store.
type Backend interface {
	Put(ctx context.Context, key string, data []byte) apperrors.Error
	Get(ctx context.Context, key string) ([]byte, apperrors.Error)
	Delete(ctx context.Context, key string) apperrors.Error
	// DeletePrefix removes every object whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) apperrors.Error
}

type Store interface {
	Backend
	// PresignGet returns a URL that serves key until ttl elapses.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, apperrors.Error)
	// Open returns the key and content behind a presigned token.
	Open(ctx context.Context, token string) (string, []byte, apperrors.Error)
}

type bucket struct {
	Backend
	presigner *Presigner
}

// New combines a backend with a presigner into a Store.
func New(backend Backend, presigner *Presigner) Store {
	return &bucket{Backend: backend, presigner: presigner}
}

func (b *bucket) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, apperrors.Error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return b.presigner.URL(key, ttl)
}

func (b *bucket) Open(ctx context.Context, token string) (string, []byte, apperrors.Error) {
	key, err := b.presigner.Verify(token)
	if err != nil {
		return "", nil, err
	}
	data, err := b.Get(ctx, key)
	if err != nil {
		return "", nil, err
	}
	return key, data, nil
}

// Key returns the storage key of a site file: {siteId}/{branch}/raw/{path}.
func Key(siteID uuid.UUID, branch, filePath string) string {
	return siteID.String() + "/" + branch + "/raw/" + strings.TrimPrefix(filePath, "/")
}

// SitePrefix returns the key prefix shared by every object of a site.
func SitePrefix(siteID uuid.UUID) string {
	return siteID.String() + "/"
}

func validateKey(key string) apperrors.Error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey.Msg("object key must be a non-empty relative path")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return ErrInvalidKey.Msg("object key cannot contain '..'")
		}
	}
	return nil
}
