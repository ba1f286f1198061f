package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"hvac-dispatch/internal/config"
	"hvac-dispatch/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Get("/me", JWTAuth(), func(c *fiber.Ctx) error {
		return c.JSON(ActorFrom(c))
	})
	app.Get("/dispatch", JWTAuth(), RoleAuth(models.RoleDispatcher, models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := config.GenerateToken(10, 2, "Rafael", "rafael@example.com", role)
	require.NoError(t, err)
	return tok
}

func TestJWTAuth(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	app := newApp()

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing", "", "", fiber.StatusUnauthorized},
		{"bad format", "Token abc", "", fiber.StatusUnauthorized},
		{"invalid token", "Bearer abc", "", fiber.StatusUnauthorized},
		{"valid header", "Bearer " + token(t, models.RoleTechnician), "", fiber.StatusOK},
		{"valid query", "", "?token=" + token(t, models.RoleTechnician), fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestActorFrom(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	app := newApp()

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, models.RoleTechnician))
	resp, err := app.Test(req)
	require.NoError(t, err)

	var actor models.Actor
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&actor))
	assert.Equal(t, models.Actor{UserID: 10, TenantID: 2, Role: models.RoleTechnician, Name: "Rafael"}, actor)
}

func TestRoleAuth(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	app := newApp()

	req := httptest.NewRequest("GET", "/dispatch", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, models.RoleTechnician))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/dispatch", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, models.RoleDispatcher))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
