package source

import (
	"context"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/syncsrv/db"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
	"github.com/flowershow/contentsync/internal/syncsrv/diff"
	"github.com/flowershow/contentsync/internal/syncsrv/objectstore"
)

// Uploaded serves sites whose files are published directly into the object
// store. Its listing is the set of files tracked for the site.
type Uploaded struct {
	objects objectstore.Backend
	blobs   db.BlobStore
}

func NewUploaded(objects objectstore.Backend, blobs db.BlobStore) *Uploaded {
	return &Uploaded{objects: objects, blobs: blobs}
}

func (u *Uploaded) ObjectBacked() bool { return true }

func (u *Uploaded) ListFiles(ctx context.Context, site *models.Site) ([]diff.Entry, apperrors.Error) {
	blobs, err := u.blobs.ListBlobs(ctx, site.ID)
	if err != nil {
		return nil, ErrListing.Err(err)
	}
	entries := make([]diff.Entry, 0, len(blobs))
	for _, b := range blobs {
		entries = append(entries, diff.Entry{Path: b.Path, ContentHash: b.ContentHash, Size: b.Size})
	}
	return entries, nil
}

func (u *Uploaded) Fetch(ctx context.Context, site *models.Site, filePath string) ([]byte, apperrors.Error) {
	data, err := u.objects.Get(ctx, objectstore.Key(site.ID, site.Branch(), filePath))
	if err != nil {
		if err.Is(objectstore.ErrObjectNotFound) {
			return nil, ErrSourceNotFound.Msg("file not uploaded: " + filePath)
		}
		return nil, ErrFetch.Err(err)
	}
	return data, nil
}
