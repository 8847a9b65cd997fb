package model

import "time"

// Owner is the principal a session belongs to. Rows are provisioned
// out-of-band (cmd/issue-key); the engine only authenticates against them.
type Owner struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	AccessKeyHash string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// TokenRequest is the payload for exchanging an access key for an owner JWT.
type TokenRequest struct {
	OwnerID   int    `json:"owner_id" binding:"required,min=1"`
	AccessKey string `json:"access_key" binding:"required,min=6,max=128"`
}

// TokenResponse is returned after a successful key exchange.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Owner     Owner     `json:"owner"`
}
