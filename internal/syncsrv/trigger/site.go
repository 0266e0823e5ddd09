package trigger

import (
	"context"
	"net/http"
	"regexp"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/syncsrv/content/permalink"
	"github.com/flowershow/contentsync/internal/syncsrv/db/dberror"
	"github.com/flowershow/contentsync/internal/syncsrv/db/models"
	"github.com/flowershow/contentsync/pkg/types"
)

var ErrSiteExists apperrors.Error = ErrTrigger.New("site already exists").SetStatusCode(http.StatusConflict)

var repositoryRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

const ownerTokenSize = 21

type CreateSiteRequest struct {
	UserID         string            `json:"userId,omitempty"`
	Kind           types.SourceKind  `json:"kind"`
	Repository     string            `json:"repository,omitempty"`
	Branch         string            `json:"branch,omitempty"`
	RootDir        string            `json:"rootDir,omitempty"`
	ContentInclude []string          `json:"contentInclude,omitempty"`
	ContentExclude []string          `json:"contentExclude,omitempty"`
	CustomDomain   *string           `json:"customDomain,omitempty"`
	PrivacyMode    types.PrivacyMode `json:"privacyMode,omitempty"`
	Password       string            `json:"password,omitempty"`
	Plan           types.Plan        `json:"plan,omitempty"`
}

// CreateSite registers a site. Sites without a user get an anonymous owner
// token, returned once in the created site.
func (d *Dispatcher) CreateSite(ctx context.Context, req CreateSiteRequest) (*models.Site, apperrors.Error) {
	site := &models.Site{
		UserID:         req.UserID,
		ContentInclude: req.ContentInclude,
		ContentExclude: req.ContentExclude,
		CustomDomain:   req.CustomDomain,
		PrivacyMode:    req.PrivacyMode,
		Plan:           req.Plan,
		Source: models.SiteSource{
			Kind:       req.Kind,
			Repository: req.Repository,
			Branch:     req.Branch,
			RootDir:    permalink.CleanPath(req.RootDir),
		},
	}

	switch req.Kind {
	case types.SourceGitHub:
		if !repositoryRe.MatchString(req.Repository) {
			return nil, ErrInvalidSite.Msg("repository must be of the form owner/name")
		}
		if site.Source.Branch == "" {
			site.Source.Branch = "main"
		}
	case types.SourceUploaded:
		if req.Repository != "" {
			return nil, ErrInvalidSite.Msg("uploaded sites have no repository")
		}
		site.Source.Branch = "main"
	default:
		return nil, ErrInvalidSite.Msg("unknown source kind " + string(req.Kind))
	}

	if site.PrivacyMode == "" {
		site.PrivacyMode = types.PrivacyPublic
	}
	switch site.PrivacyMode {
	case types.PrivacyPublic:
	case types.PrivacyPassword:
		if req.Password == "" {
			return nil, ErrInvalidSite.Msg("password is required for PASSWORD privacy mode")
		}
		hash, err := HashPassword(req.Password)
		if err != nil {
			return nil, ErrTrigger.MsgErr("unable to hash password", err)
		}
		site.PasswordHash = hash
	default:
		return nil, ErrInvalidSite.Msg("unknown privacy mode " + string(site.PrivacyMode))
	}
	if site.Plan == "" {
		site.Plan = types.PlanFree
	}

	if site.UserID == "" {
		token, err := gonanoid.New(ownerTokenSize)
		if err != nil {
			return nil, ErrTrigger.MsgErr("unable to generate owner token", err)
		}
		site.AnonymousOwner = token
	}

	if err := d.store.CreateSite(ctx, site); err != nil {
		if err.Is(dberror.ErrAlreadyExists) {
			return nil, ErrSiteExists
		}
		return nil, ErrTrigger.Err(err)
	}
	log.Ctx(ctx).Info().
		Str("site_id", site.ID.String()).
		Str("kind", string(site.Source.Kind)).
		Bool("anonymous", site.UserID == "").
		Msg("site created")
	return site, nil
}
