package auth

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that can sign in
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
