// Package events defines the sync lifecycle events and their Kafka delivery.
package events

import "time"

// EventTypeSyncFinished is emitted once per sync session, whatever its outcome.
const EventTypeSyncFinished = "sync.finished"

// SyncFinished summarises one sync session. It never carries credentials.
type SyncFinished struct {
	SessionID           string    `json:"session_id"`
	Outcome             string    `json:"outcome"`
	FailureKind         string    `json:"failure_kind,omitempty"`
	Phase               string    `json:"phase"`
	ActivitiesFetched   int       `json:"activities_fetched"`
	ActivitiesPersisted int       `json:"activities_persisted"`
	StaleCredential     bool      `json:"stale_credential"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
}
