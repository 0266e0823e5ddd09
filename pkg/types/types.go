// Package types holds the enumerations shared by the sync service, its
// storage layer and API clients.
package types

// SyncStatus is the per file sync state. PENDING is transient; SUCCESS and
// ERROR are terminal for a run.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "PENDING"
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusError   SyncStatus = "ERROR"
)

func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusSuccess || s == SyncStatusError
}

// SiteStatus is derived from the sync status of all blobs of a site.
type SiteStatus string

const (
	SiteStatusProcessing SiteStatus = "processing"
	SiteStatusComplete   SiteStatus = "complete"
	SiteStatusError      SiteStatus = "error"
)

// RunOutcome is the result of a finished sync run.
type RunOutcome string

const (
	RunOutcomeComplete RunOutcome = "complete"
	RunOutcomeError    RunOutcome = "error"
)

type RunState string

const (
	RunStateRunning RunState = "RUNNING"
	RunStateDone    RunState = "DONE"
	RunStateFailed  RunState = "FAILED"
)

type TriggerKind string

const (
	TriggerWebhook TriggerKind = "webhook"
	TriggerForce   TriggerKind = "force"
	TriggerPublish TriggerKind = "publish"
	TriggerCLI     TriggerKind = "cli"
)

type SourceKind string

const (
	SourceGitHub   SourceKind = "github"
	SourceUploaded SourceKind = "uploaded"
)

type PrivacyMode string

const (
	PrivacyPublic   PrivacyMode = "PUBLIC"
	PrivacyPassword PrivacyMode = "PASSWORD"
)

type Plan string

const (
	PlanFree    Plan = "FREE"
	PlanPremium Plan = "PREMIUM"
)
