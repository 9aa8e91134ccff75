package users

import (
	"time"

	"github.com/google/uuid"
)

// User is a row of the users table.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}
