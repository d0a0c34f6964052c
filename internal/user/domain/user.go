package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrUserNotFound = errors.New("user not found")

// User is the account behind a caller identity, sellers and bidders alike
type User struct {
	ID          uuid.UUID
	Email       string
	DisplayName string
	Active      bool
	CreatedAt   time.Time
}

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}
