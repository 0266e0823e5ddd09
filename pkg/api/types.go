// Package api defines the request and response bodies of the sync service
// HTTP API. Field names are part of the contract with the CLI and dashboard.
package api

import (
	"time"

	"github.com/flowershow/contentsync/pkg/types"
)

// FileCounts summarizes blob sync states. Pending includes files being processed.
type FileCounts struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

type BlobStatus struct {
	ID         string           `json:"id"`
	Path       string           `json:"path"`
	Extension  string           `json:"extension"`
	SyncStatus types.SyncStatus `json:"syncStatus"`
	SyncError  *string          `json:"syncError"`
}

type StatusResponse struct {
	SiteID string           `json:"siteId"`
	Status types.SiteStatus `json:"status"`
	// Syncing is true while a run holds the site's lock.
	Syncing bool         `json:"syncing"`
	Files   FileCounts   `json:"files"`
	Blobs   []BlobStatus `json:"blobs"`
}

type SyncRequest struct {
	Force bool `json:"force"`
}

type SyncResponse struct {
	SiteID  string           `json:"siteId"`
	RunID   string           `json:"runId,omitempty"`
	Outcome types.RunOutcome `json:"outcome,omitempty"`
	// Queued is true when the run continues in the background.
	Queued bool        `json:"queued"`
	Counts *RunCounts  `json:"counts,omitempty"`
	Errors []FileError `json:"errors,omitempty"`
}

type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// PublishFile names a file to add or update. Content is base64 encoded; when
// it is empty the file must already be in object storage.
type PublishFile struct {
	Path    string `json:"path"`
	SHA     string `json:"sha,omitempty"`
	Size    int64  `json:"size,omitempty"`
	Content string `json:"content,omitempty"`
}

type PublishRequest struct {
	Files []PublishFile `json:"files"`
	// Complete marks the file list as the entire site, so files missing
	// from it are deleted.
	Complete bool `json:"complete,omitempty"`
}

type PublishResponse struct {
	SyncResponse
	Files []string `json:"files"`
	// OwnerToken is returned once, when the publish created an anonymous site.
	OwnerToken string `json:"ownerToken,omitempty"`
}

type SiteSource struct {
	Kind       types.SourceKind `json:"kind"`
	Repository string           `json:"repository,omitempty"`
	Branch     string           `json:"branch,omitempty"`
	RootDir    string           `json:"rootDir,omitempty"`
}

type CreateSiteRequest struct {
	UserID         string            `json:"userId,omitempty"`
	Source         SiteSource        `json:"source"`
	ContentInclude []string          `json:"contentInclude,omitempty"`
	ContentExclude []string          `json:"contentExclude,omitempty"`
	CustomDomain   *string           `json:"customDomain,omitempty"`
	PrivacyMode    types.PrivacyMode `json:"privacyMode,omitempty"`
	Password       string            `json:"password,omitempty"`
	Plan           types.Plan        `json:"plan,omitempty"`
}

type SiteResponse struct {
	ID             string            `json:"id"`
	UserID         string            `json:"userId,omitempty"`
	AnonymousOwner string            `json:"anonymousOwner,omitempty"`
	Source         SiteSource        `json:"source"`
	ContentInclude []string          `json:"contentInclude,omitempty"`
	ContentExclude []string          `json:"contentExclude,omitempty"`
	CustomDomain   *string           `json:"customDomain,omitempty"`
	PrivacyMode    types.PrivacyMode `json:"privacyMode"`
	Plan           types.Plan        `json:"plan"`
	CreatedAt      time.Time         `json:"createdAt"`
}

type RunCounts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

type RunResponse struct {
	ID          string            `json:"id"`
	SiteID      string            `json:"siteId"`
	Trigger     types.TriggerKind `json:"trigger"`
	Mode        string            `json:"mode"`
	State       types.RunState    `json:"state"`
	Outcome     types.RunOutcome  `json:"outcome,omitempty"`
	Error       string            `json:"error,omitempty"`
	Counts      RunCounts         `json:"counts"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

type RawURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type WebhookResponse struct {
	Sites []string `json:"sites"`
}

type SearchResult struct {
	Path        string   `json:"path"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	Date        string   `json:"date,omitempty"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}
