package model

import "time"

// User represents an operator account as stored in the `users` table.
// The password is persisted only as a bcrypt hash and is never serialized
// in API responses.
//
// Fields:
//
//	ID           – primary key identifier.
//	FullName     – display name shown in the UI.
//	Email        – login email, unique across accounts.
//	PasswordHash – bcrypt hashed password.
//	AvatarURL    – URL of the avatar hosted by the external asset host.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultAvatarURL is assigned to accounts created without an avatar.
const DefaultAvatarURL = "https://i.ibb.co/4pDNDk1/avatar.png"
