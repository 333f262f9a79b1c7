package models

import "time"

// User is an authenticated Smooshr user.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	IdentityProvider string    `json:"identity_provider"`
	FamilyName       string    `json:"family_name"`
	GivenName        string    `json:"given_name"`
	CreatedDate      time.Time `json:"created_date"`
}

// APIKey lets a user call the API without an identity provider token.
type APIKey struct {
	Key        string    `json:"api_key"`
	UserID     string    `json:"-"`
	Expiration time.Time `json:"expiration"`
}

// Expired reports whether the key is no longer valid at now.
func (k APIKey) Expired(now time.Time) bool {
	return !k.Expiration.After(now)
}

// APIKeyCreate is the body of POST /api-keys.
type APIKeyCreate struct {
	Expiration time.Time `json:"expiration"`
}

// APIKeyDelete is the body of DELETE /api-keys.
type APIKeyDelete struct {
	Key string `json:"api_key"`
}
