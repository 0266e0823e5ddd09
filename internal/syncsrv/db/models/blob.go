package models

import (
	"time"

	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/pkg/types"
)

/*
    Column    |           Type           | Nullable | Default
--------------+--------------------------+----------+-----------
 id           | uuid                     | not null |
 site_id      | uuid                     | not null |
 path         | text                     | not null |
 extension    | character varying(16)    | not null |
 content_hash | character varying(128)   | not null | ''
 size         | bigint                   | not null | 0
 app_path     | text                     |          |
 permalink    | text                     |          |
 metadata     | jsonb                    |          |
 width        | integer                  |          |
 height       | integer                  |          |
 sync_status  | character varying(16)    | not null | 'PENDING'
 sync_error   | text                     |          |
 created_at   | timestamp with time zone | not null | now()
 updated_at   | timestamp with time zone | not null | now()
Indexes:
    "blobs_pkey" PRIMARY KEY (id)
    "blobs_site_id_path_key" UNIQUE (site_id, path)
*/

type Blob struct {
	ID          uuid.UUID        `db:"id"`
	SiteID      uuid.UUID        `db:"site_id"`
	Path        string           `db:"path"`
	Extension   string           `db:"extension"`
	ContentHash string           `db:"content_hash"`
	Size        int64            `db:"size"`
	AppPath     *string          `db:"app_path"`
	Permalink   *string          `db:"permalink"`
	Metadata    map[string]any   `db:"metadata"`
	Width       *int             `db:"width"`
	Height      *int             `db:"height"`
	SyncStatus  types.SyncStatus `db:"sync_status"`
	SyncError   *string          `db:"sync_error"`
	CreatedAt   time.Time        `db:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at"`
}

// PendingBlob describes a file about to be processed. Rows that do not exist
// yet are created from it.
type PendingBlob struct {
	Path      string
	Extension string
	Size      int64
}

// BlobResult is the terminal state written for a processed file.
type BlobResult struct {
	Path        string
	ContentHash string
	Size        int64
	AppPath     *string
	Permalink   *string
	Metadata    map[string]any
	Width       *int
	Height      *int
}
