package models

import "time"

type User struct {
	ID           int64
	DisplayName  string
	Email        string
	PasswordHash string
	Registered   bool
	Avatar       string
	CreatedAt    time.Time
}
