// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// Event kinds published on the app.activity queue.
const (
	KindApplicationCreated = "application.created"
	KindApplicationRenamed = "application.renamed"
	KindApplicationDeleted = "application.deleted"
	KindPhaseAdded         = "phase.added"
	KindPhaseUpdated       = "phase.updated"
	KindPhaseDeleted       = "phase.deleted"
	KindServiceConnected   = "service.connected"
	KindServiceUpdated     = "service.updated"
	KindServiceRemoved     = "service.removed"
)

// ActivityEvent is published after a successful mutation of the registry.
// It carries enough context for downstream consumers to log or notify
// without querying the primary database.
type ActivityEvent struct {
	Kind            string `json:"kind"`
	ApplicationID   uint64 `json:"application_id"`
	ApplicationName string `json:"application_name,omitempty"`
	Subject         string `json:"subject,omitempty"` // phase or service name involved
	ActorID         uint64 `json:"actor_id"`
	OccurredAt      string `json:"occurred_at"`
}
