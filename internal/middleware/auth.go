package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tasktrack/backend/internal/audit"
	"github.com/tasktrack/backend/internal/auth"
	"github.com/tasktrack/backend/internal/config"
	"github.com/tasktrack/backend/internal/rbac"
)

const (
	CtxUserID      = "user_id"
	CtxEmail       = "email"
	CtxDisplayName = "display_name"
	CtxRole        = "role"
)

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxUserID, claims.UserID)
		c.Locals(CtxEmail, claims.Email)
		c.Locals(CtxDisplayName, claims.DisplayName)
		c.Locals(CtxRole, claims.Role)

		return c.Next()
	}
}

func GetUserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxUserID).(uuid.UUID)
	return id
}

func GetRole(c *fiber.Ctx) string {
	role, _ := c.Locals(CtxRole).(string)
	return role
}

// GetActor builds the audit actor snapshot for the authenticated caller.
// Returns nil when the request carries no identity, which the audit
// subsystem records as a system-initiated change.
func GetActor(c *fiber.Ctx) *audit.Actor {
	id, ok := c.Locals(CtxUserID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return nil
	}
	name, _ := c.Locals(CtxDisplayName).(string)
	role, _ := c.Locals(CtxRole).(string)
	return &audit.Actor{ID: id, DisplayName: name, Role: role}
}

// RequirePermission gates a route on an rbac permission of the caller's role.
func RequirePermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rbac.HasPermission(GetRole(c), permission) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "insufficient permissions"})
		}
		return c.Next()
	}
}
