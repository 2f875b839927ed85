package model

import "time"

// Account mirrors the identity-provider user we reference by opaque id.
// The provider owns the record; we only ever create or look it up by email.
type Account struct {
	ID        string
	Email     string
	CreatedAt time.Time
}
