package domain

import "time"

// IntentSource identifies what triggered a SyncIntent.
type IntentSource string

const (
	SourceSchedule   IntentSource = "schedule"
	SourceWebhook    IntentSource = "webhook"
	SourceMessageBus IntentSource = "message_bus"
	SourceManual     IntentSource = "manual"
)

// SyncIntent is an ephemeral per-trigger record: created on trigger, its
// ID logged as intent_id, discarded after the reconcile attempt terminates.
// The gate and the reconciler do not receive it.
type SyncIntent struct {
	ID         string
	Source     IntentSource
	Scope      string // "full" or "zone:<name>"
	ReceivedAt time.Time
}

// FullSyncIntent builds a SyncIntent scoped to a full sync.
func FullSyncIntent(id string, source IntentSource, at time.Time) SyncIntent {
	return SyncIntent{ID: id, Source: source, Scope: "full", ReceivedAt: at}
}

// ZoneSyncIntent builds a SyncIntent scoped to a single zone.
func ZoneSyncIntent(id string, source IntentSource, zone string, at time.Time) SyncIntent {
	return SyncIntent{ID: id, Source: source, Scope: "zone:" + zone, ReceivedAt: at}
}
