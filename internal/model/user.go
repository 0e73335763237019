package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a purchaser account. Points is the loyalty balance and is never
// negative.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Points       int64     `json:"points" db:"points"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
