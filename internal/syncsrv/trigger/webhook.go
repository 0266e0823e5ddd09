package trigger

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
	"github.com/flowershow/contentsync/internal/syncsrv/diff"
	"github.com/flowershow/contentsync/internal/syncsrv/orchestrator"
	"github.com/flowershow/contentsync/pkg/types"
)

const branchRefPrefix = "refs/heads/"

// PushEvent is the part of a GitHub push payload that routes a sync.
type PushEvent struct {
	Repository string
	Ref        string
	// Deleted is set when the push removed the ref.
	Deleted bool
	After   string
}

// Branch returns the pushed branch, or "" when the ref is not a branch.
func (e PushEvent) Branch() string {
	if !strings.HasPrefix(e.Ref, branchRefPrefix) {
		return ""
	}
	return strings.TrimPrefix(e.Ref, branchRefPrefix)
}

func ParsePushEvent(payload []byte) (PushEvent, apperrors.Error) {
	if !gjson.ValidBytes(payload) {
		return PushEvent{}, ErrInvalidEvent.Msg("payload is not valid JSON")
	}
	res := gjson.GetManyBytes(payload, "repository.full_name", "ref", "deleted", "after")
	ev := PushEvent{
		Repository: res[0].String(),
		Ref:        res[1].String(),
		Deleted:    res[2].Bool(),
		After:      res[3].String(),
	}
	if ev.Repository == "" || ev.Ref == "" {
		return PushEvent{}, ErrInvalidEvent.Msg("push event requires repository.full_name and ref")
	}
	return ev, nil
}

// Webhook queues a full run for every site tracking the pushed repository
// and branch, and returns their ids. Tag pushes and branch deletions start
// nothing.
func (d *Dispatcher) Webhook(ctx context.Context, ev PushEvent) ([]uuid.UUID, apperrors.Error) {
	if d.closed.Load() {
		return nil, ErrShuttingDown
	}
	logger := log.Ctx(ctx).With().Str("repository", ev.Repository).Str("ref", ev.Ref).Logger()
	branch := ev.Branch()
	if branch == "" || ev.Deleted {
		logger.Debug().Msg("push event ignored")
		return nil, nil
	}

	sites, err := d.store.ListSitesByRepository(ctx, ev.Repository, branch)
	if err != nil {
		return nil, ErrTrigger.Err(err)
	}
	ids := make([]uuid.UUID, 0, len(sites))
	for _, site := range sites {
		req := orchestrator.RunRequest{
			SiteID:  site.ID,
			Trigger: types.TriggerWebhook,
			Mode:    diff.Full,
			Policy:  orchestrator.PolicyQueue,
		}
		d.background(ctx, func(ctx context.Context) {
			if _, err := d.orch.RunSync(ctx, req); err != nil {
				log.Ctx(ctx).Error().Err(err).Str("site_id", req.SiteID.String()).Msg("webhook sync failed")
			}
		})
		ids = append(ids, site.ID)
	}
	logger.Info().Int("sites", len(ids)).Str("after", ev.After).Msg("push event dispatched")
	return ids, nil
}
