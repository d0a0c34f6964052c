// Package identity resolves the caller from the X-User-ID header set by the upstream authenticator
package identity

import (
	"errors"

	"github.com/cristianortiz/bidEngine/internal/shared/logger"
	"github.com/cristianortiz/bidEngine/internal/user/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	Header = "X-User-ID"
	// LocalUserID holds the verified caller id as a string, shared with the websocket upgrade
	LocalUserID = "userID"
)

// Middleware stores the caller id in the request locals. Requests without the header pass
// through anonymous; a malformed or unknown id is refused. users may be nil to skip verification
func Middleware(users domain.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(Header)
		if raw == "" {
			return c.Next()
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid "+Header)
		}

		if users != nil {
			user, err := users.GetByID(c.UserContext(), id)
			switch {
			case errors.Is(err, domain.ErrUserNotFound):
				return fiber.NewError(fiber.StatusUnauthorized, "unknown user")
			case err != nil:
				log.Error("user lookup failed", zap.String("user_id", raw), zap.Error(err))
				return fiber.NewError(fiber.StatusServiceUnavailable, "identity lookup unavailable")
			case !user.Active:
				return fiber.NewError(fiber.StatusForbidden, "user is inactive")
			}
		}

		c.Locals(LocalUserID, id.String())
		return c.Next()
	}
}

// UserID returns the caller resolved by Middleware
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	raw, ok := c.Locals(LocalUserID).(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}

// Require refuses anonymous callers
func Require(c *fiber.Ctx) error {
	if _, ok := UserID(c); !ok {
		return fiber.NewError(fiber.StatusUnauthorized, Header+" header required")
	}
	return c.Next()
}
