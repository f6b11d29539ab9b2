package model

import "time"

// ProviderKind identifies an external data provider.
type ProviderKind string

const (
	ProviderGmail   ProviderKind = "gmail"
	ProviderHubSpot ProviderKind = "hubspot"
)

// Providers lists every provider kind the pipeline knows about.
var Providers = []ProviderKind{ProviderGmail, ProviderHubSpot}

// Valid reports whether k names a known provider.
func (k ProviderKind) Valid() bool {
	switch k {
	case ProviderGmail, ProviderHubSpot:
		return true
	}
	return false
}

// ConnectedAccount records an OAuth-connected external account.
// Disconnects tombstone the row (DisconnectedAt set) rather than delete it,
// so sync history stays auditable. At most one live account exists per provider.
type ConnectedAccount struct {
	Provider       ProviderKind `json:"provider"`
	ExternalID     string       `json:"externalId"`
	ConnectedAt    time.Time    `json:"connectedAt"`
	LastSync       *time.Time   `json:"lastSync,omitempty"`
	DisconnectedAt *time.Time   `json:"disconnectedAt,omitempty"`
}

// JobStatus is the lifecycle state of a SyncJob.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobPartial   JobStatus = "partial"
	JobFailed    JobStatus = "failed"
)

// SyncCounts accumulates per-record outcomes for a sync job.
type SyncCounts struct {
	Fetched          int `json:"fetched"`
	Normalized       int `json:"normalized"`
	Ingested         int `json:"ingested"`
	SkippedDuplicate int `json:"skippedDuplicate"`
	SkippedMalformed int `json:"skippedMalformed"`
	Failed           int `json:"failed"`
}

// SyncJob tracks one fetch→normalize→ingest run for an account.
// The store enforces a single running job per provider.
type SyncJob struct {
	JobID       string       `json:"jobId"`
	Provider    ProviderKind `json:"provider"`
	AccountID   string       `json:"accountId"`
	Status      JobStatus    `json:"status"`
	StartedAt   time.Time    `json:"startedAt"`
	FinishedAt  *time.Time   `json:"finishedAt,omitempty"`
	WindowStart time.Time    `json:"windowStart"`
	WindowEnd   time.Time    `json:"windowEnd"`
	Counts      SyncCounts   `json:"counts"`
	Error       string       `json:"error,omitempty"`
}

// CRMObjectType distinguishes the HubSpot object kinds the gateway pages over.
type CRMObjectType string

const (
	CRMContact CRMObjectType = "contact"
	CRMDeal    CRMObjectType = "deal"
	CRMCompany CRMObjectType = "company"
)

// EmailRecord is the provider-native shape of one email message.
type EmailRecord struct {
	Subject string
	From    string
	To      string
	Body    string
}

// CRMRecord is the provider-native shape of one CRM object.
type CRMRecord struct {
	Type       CRMObjectType
	Properties map[string]string
}

// RawRecord is a tagged union over provider-native records. Exactly one of
// Email or Object is set, matching Provider. Records are transient: they live
// only for the duration of a sync page.
type RawRecord struct {
	Provider   ProviderKind
	ID         string
	ModifiedAt time.Time
	Email      *EmailRecord
	Object     *CRMRecord
}

// Episode is a normalized, timestamped fact unit submitted to the knowledge
// graph. EpisodeID is deterministic per (provider, source record), so
// re-ingesting the same record upserts instead of duplicating.
type Episode struct {
	Provider   ProviderKind      `json:"provider"`
	AccountID  string            `json:"accountId"`
	SourceID   string            `json:"sourceId"`
	EpisodeID  string            `json:"episodeId"`
	OccurredAt time.Time         `json:"occurredAt"`
	Content    string            `json:"content"`
	Source     string            `json:"source"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Fact is one retrieval unit returned by the graph store, with the episode
// IDs that support it (the provenance chain for citations).
type Fact struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	EpisodeIDs []string `json:"episodeIds,omitempty"`
	Score      float64  `json:"score"`
}

// EpisodeRef is the persisted provenance row mapping an episode back to a
// human-readable source descriptor.
type EpisodeRef struct {
	Provider   ProviderKind `json:"provider"`
	AccountID  string       `json:"accountId"`
	SourceID   string       `json:"sourceId"`
	EpisodeID  string       `json:"episodeId"`
	Source     string       `json:"source"`
	OccurredAt time.Time    `json:"occurredAt"`
}

// ChatResponse is a grounded answer with its resolved source descriptors.
// Every source corresponds to a fact retrieved for the query.
type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// ProviderStatus is the per-provider connection summary surfaced to the UI.
type ProviderStatus struct {
	Connected bool       `json:"connected"`
	LastSync  *time.Time `json:"lastSync,omitempty"`
	LastJob   *SyncJob   `json:"lastJob,omitempty"`
}
