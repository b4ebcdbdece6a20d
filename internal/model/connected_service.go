package model

import "time"

// ConnectedService links one external system to an application. Unlike a
// phase it is a referenced entity with its own lifecycle: it is stored in a
// separate collection and only holds the owning application's id. Service
// names are unique per application, not globally.
type ConnectedService struct {
	ID            string    `json:"id"`
	ApplicationID uint64    `json:"application_id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
