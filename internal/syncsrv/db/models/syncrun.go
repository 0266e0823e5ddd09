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
 trigger      | character varying(16)    | not null |
 mode         | character varying(16)    | not null |
 state        | character varying(16)    | not null | 'RUNNING'
 outcome      | character varying(16)    |          |
 error        | text                     |          |
 created      | integer                  | not null | 0
 updated      | integer                  | not null | 0
 deleted      | integer                  | not null | 0
 unchanged    | integer                  | not null | 0
 failed       | integer                  | not null | 0
 started_at   | timestamp with time zone | not null | now()
 completed_at | timestamp with time zone |          |
*/

type SyncRun struct {
	ID          uuid.UUID         `db:"id"`
	SiteID      uuid.UUID         `db:"site_id"`
	Trigger     types.TriggerKind `db:"trigger"`
	Mode        string            `db:"mode"`
	State       types.RunState    `db:"state"`
	Outcome     types.RunOutcome  `db:"outcome"`
	Error       string            `db:"error"`
	Created     int               `db:"created"`
	Updated     int               `db:"updated"`
	Deleted     int               `db:"deleted"`
	Unchanged   int               `db:"unchanged"`
	Failed      int               `db:"failed"`
	StartedAt   time.Time         `db:"started_at"`
	CompletedAt *time.Time        `db:"completed_at"`
}
