package model

import "time"

// Application is the aggregate root of the registry. It owns an ordered
// collection of phases; phases have no existence outside their application.
// Application names are unique across the whole registry (case-sensitive).
type Application struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Phases    []*Phase  `json:"phases"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PhaseStatus is the progress state of a phase.
type PhaseStatus string

const (
	// PhaseStatusPending is the default state of a newly added phase.
	PhaseStatusPending PhaseStatus = "pending"
	// PhaseStatusInProgress marks a phase currently being worked on.
	PhaseStatusInProgress PhaseStatus = "in-progress"
	// PhaseStatusCompleted marks a finished phase.
	PhaseStatusCompleted PhaseStatus = "completed"
)

// ValidPhaseStatus reports whether s is one of the known phase states.
func ValidPhaseStatus(s PhaseStatus) bool {
	switch s {
	case PhaseStatusPending, PhaseStatusInProgress, PhaseStatusCompleted:
		return true
	}
	return false
}

// Phase is an implementation step embedded in exactly one application.
// Its identifier is generated at insertion time and is globally unique, so
// phases can be addressed without knowing the owning application. The name
// is unique within the owning application only. SortOrder drives display
// ordering; it defaults to 0, in which case listing falls back to insertion
// order.
type Phase struct {
	ID             string      `json:"id"`
	ApplicationID  uint64      `json:"application_id"`
	Name           string      `json:"name"`
	CompletionDate time.Time   `json:"completion_date"`
	Description    string      `json:"description,omitempty"`
	Status         PhaseStatus `json:"status"`
	SortOrder      int         `json:"order"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
