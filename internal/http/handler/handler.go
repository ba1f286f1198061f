package handler

import (
	"context"
	"strconv"

	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/http/middleware"
	"hvac-dispatch/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

type UserStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, tenantID int64, role, isBanned, search string, page, limit int) ([]models.User, int, error)
	Create(ctx context.Context, u *models.User) error
	SetBanned(ctx context.Context, tenantID, id int64, banned bool) error
}

type CustomerStore interface {
	Get(ctx context.Context, tenantID, id int64) (*models.Customer, error)
}

type CertificationLister interface {
	ListForTechnician(ctx context.Context, tenantID, technicianID int64) ([]models.TechnicianCertification, error)
}

// Handler serves the dispatch API over fiber.
type Handler struct {
	engine        *dispatch.Engine
	users         UserStore
	customers     CustomerStore
	certs         CertificationLister
	publicBaseURL string
	logger        *zap.Logger
}

func New(engine *dispatch.Engine, users UserStore, customers CustomerStore, certs CertificationLister, publicBaseURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engine:        engine,
		users:         users,
		customers:     customers,
		certs:         certs,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

// Register mounts every route on app.
func (h *Handler) Register(app *fiber.App) {
	dispatchers := middleware.RoleAuth(models.RoleDispatcher, models.RoleAdmin)

	// Public tracking page (anonymous)
	app.Get("/track/:publicId", h.Track)
	app.Use("/track/:publicId/ws", upgradeOnly)
	app.Get("/track/:publicId/ws", websocket.New(h.TrackWS))

	app.Post("/api/auth/login", h.Login)

	api := app.Group("/api", middleware.JWTAuth())
	api.Post("/auth/logout", h.Logout)

	// Users
	api.Get("/users", dispatchers, h.ListUsers)
	api.Post("/users", middleware.RoleAuth(models.RoleAdmin), h.CreateUser)
	api.Put("/users/:id/ban", middleware.RoleAuth(models.RoleAdmin), h.BanUser)
	api.Get("/technicians/:id/certifications", dispatchers, h.TechnicianCertifications)
	api.Use("/technicians/:id/ws", upgradeOnly)
	api.Get("/technicians/:id/ws", dispatchers, websocket.New(h.TechnicianWS))

	// Certification gate
	api.Post("/certifications/validate", dispatchers, h.ValidateCertification)

	// Orders
	api.Get("/orders", h.ListOrders)
	api.Post("/orders", dispatchers, h.CreateOrder)
	api.Get("/orders/:id", h.GetOrder)
	api.Put("/orders/:id", dispatchers, h.UpdateOrder)
	api.Delete("/orders/:id", dispatchers, h.DeleteOrder)
	api.Put("/orders/:id/technician", dispatchers, h.AssignTechnician)
	api.Post("/orders/:id/accept", h.AcceptOrder)
	api.Post("/orders/:id/cancel", h.CancelOrder)
	api.Put("/orders/:id/status", h.SetStatus)
	api.Get("/orders/:id/links", dispatchers, h.MessageLinks)

	// Tracking
	api.Post("/orders/:id/tracking/start", h.StartTracking)
	api.Post("/orders/:id/tracking/stop", h.StopTracking)
	api.Put("/tracking/position", h.UpdatePosition)
	api.Get("/orders/:id/events", h.ListEvents)
	api.Post("/orders/:id/events", h.AppendEvent)

	// Photos and completion
	api.Get("/orders/:id/photos", h.ListPhotos)
	api.Post("/orders/:id/photos", h.UploadPhoto)
	api.Post("/orders/:id/complete", h.CompleteOrder)
}

func upgradeOnly(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &dispatch.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}

func badRequest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid request body",
	})
}
