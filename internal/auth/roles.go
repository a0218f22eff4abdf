package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-service/internal/domain"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

// RequireRequester ensures a requester is authenticated.
func RequireRequester() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok || actor.Role != domain.RoleRequester {
			return apperrors.NewForbidden("requester role required")
		}
		return c.Next()
	}
}

// RequireStaff ensures the caller carries the staff role.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok || !actor.IsStaff() {
			return apperrors.NewForbidden("staff role required")
		}
		return c.Next()
	}
}
