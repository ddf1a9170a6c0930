package models

import "time"

// Credential is the OAuth state needed to call the activity API.
// ExpiresAt is a unix timestamp in seconds.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	TokenType    string
	ClientID     string
	ClientSecret string
}

// Expiry returns ExpiresAt as a time.Time.
func (c Credential) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}
