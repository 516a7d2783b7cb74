package model

import "time"

// Credential is one issued API key. The raw secret is never stored; only its
// salted bcrypt hash is persisted, and the hash itself is never serialized.
type Credential struct {
	ID           int64     `json:"id" db:"id"`
	HashedSecret string    `json:"-" db:"hashed_api_key"` // bcrypt hash, never expose
	IsAdmin      bool      `json:"is_admin" db:"is_admin"`
	Notes        string    `json:"notes" db:"notes"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Tier returns the privilege tier name used in logs and metric labels.
func (c *Credential) Tier() string {
	if c.IsAdmin {
		return "admin"
	}
	return "regular"
}
