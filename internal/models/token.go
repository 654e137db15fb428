package models

import "time"

// AdminClaims are carried by the bearer tokens of the admin HTTP API.
type AdminClaims struct {
	AdminID   int64     `json:"admin_id"`
	ExpiresAt time.Time `json:"exp"`
	IssuedAt  time.Time `json:"iat"`
}
