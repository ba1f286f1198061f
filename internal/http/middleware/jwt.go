package middleware

import (
	"strings"

	"hvac-dispatch/internal/config"
	"hvac-dispatch/internal/models"

	"github.com/gofiber/fiber/v2"
)

// JWTAuth validates the bearer token and stores its claims in locals.
// Browsers cannot set headers on a websocket handshake, so a "token" query
// parameter is accepted as well.
func JWTAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if authHeader := c.Get("Authorization"); authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid authorization format",
				})
			}
			token = tokenParts[1]
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		claims, err := config.ValidateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("name", claims.Name)
		c.Locals("email", claims.Email)
		c.Locals("role", claims.Role)
		c.Locals("tenant_id", claims.TenantID)

		return c.Next()
	}
}

func RoleAuth(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(string)

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You do not have access to this resource",
		})
	}
}

// ActorFrom builds the dispatch actor from the locals set by JWTAuth.
func ActorFrom(c *fiber.Ctx) models.Actor {
	userID, _ := c.Locals("user_id").(int64)
	tenantID, _ := c.Locals("tenant_id").(int64)
	role, _ := c.Locals("role").(string)
	name, _ := c.Locals("name").(string)
	return models.Actor{UserID: userID, TenantID: tenantID, Role: role, Name: name}
}
