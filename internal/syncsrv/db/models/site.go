package models

import (
	"time"

	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/pkg/types"
)

/*
      Column      |           Type           | Nullable | Default
------------------+--------------------------+----------+---------
 id               | uuid                     | not null |
 user_id          | character varying(128)   |          |
 anonymous_owner  | character varying(64)    |          |
 source_kind      | character varying(16)    | not null |
 gh_repository    | character varying(256)   |          |
 gh_branch        | character varying(256)   |          |
 root_dir         | character varying(512)   |          |
 content_include  | text[]                   |          |
 content_exclude  | text[]                   |          |
 custom_domain    | character varying(253)   |          |
 privacy_mode     | character varying(16)    | not null | 'PUBLIC'
 password_hash    | bytea                    |          |
 plan             | character varying(16)    | not null | 'FREE'
 created_at       | timestamp with time zone | not null | now()
 updated_at       | timestamp with time zone | not null | now()
*/

type SiteSource struct {
	Kind       types.SourceKind `db:"source_kind"`
	Repository string           `db:"gh_repository"`
	Branch     string           `db:"gh_branch"`
	RootDir    string           `db:"root_dir"`
}

type Site struct {
	ID             uuid.UUID         `db:"id"`
	UserID         string            `db:"user_id"`
	AnonymousOwner string            `db:"anonymous_owner"`
	Source         SiteSource        `db:"-"`
	ContentInclude []string          `db:"content_include"`
	ContentExclude []string          `db:"content_exclude"`
	CustomDomain   *string           `db:"custom_domain"`
	PrivacyMode    types.PrivacyMode `db:"privacy_mode"`
	PasswordHash   []byte            `db:"password_hash"`
	Plan           types.Plan        `db:"plan"`
	CreatedAt      time.Time         `db:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at"`
}

// Branch returns the branch content is synced from, "main" for uploaded sites.
func (s *Site) Branch() string {
	if s.Source.Branch == "" {
		return "main"
	}
	return s.Source.Branch
}
