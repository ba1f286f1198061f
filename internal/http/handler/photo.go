package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/http/middleware"
	"hvac-dispatch/internal/models"

	"github.com/gofiber/fiber/v2"
)

// maxUploadBytes is one byte over what the engine accepts, so oversized
// files reach it and are rejected with a validation error.
const maxUploadBytes = 10<<20 + 1

func readUpload(fh *multipart.FileHeader) (models.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return models.Upload{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return models.Upload{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return models.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *Handler) ListPhotos(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	photos, err := h.engine.Photos.List(c.UserContext(), middleware.ActorFrom(c), id)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    photos,
	})
}

// UploadPhoto stores a multipart "file" under a photo category.
func (h *Handler) UploadPhoto(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file is required",
		})
	}
	file, err := readUpload(fh)
	if err != nil {
		return h.respondError(c, err)
	}

	var caption *string
	if v := strings.TrimSpace(c.FormValue("caption")); v != "" {
		caption = &v
	}

	photo, err := h.engine.Photos.Upload(c.UserContext(), middleware.ActorFrom(c), id, models.PhotoCategory(c.FormValue("category")), caption, file)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    photo,
	})
}

// CompleteOrder runs the completion workflow. As multipart it takes an
// optional "signature" file and a "parts" JSON array; as JSON only
// {"parts": [...]}, which only succeeds when retrying a completion whose
// signature was already stored.
func (h *Handler) CompleteOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}

	var (
		signature *models.Upload
		parts     []models.ConsumedPart
	)

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return badRequest(c)
		}
		if files := form.File["signature"]; len(files) > 0 {
			file, err := readUpload(files[0])
			if err != nil {
				return h.respondError(c, err)
			}
			signature = &file
		}
		if raw := form.Value["parts"]; len(raw) > 0 && raw[0] != "" {
			if err := json.Unmarshal([]byte(raw[0]), &parts); err != nil {
				return h.respondError(c, &dispatch.ValidationError{Field: "parts", Message: "must be a JSON array of {item_id, quantity}"})
			}
		}
	} else if len(c.Body()) > 0 {
		var req struct {
			Parts []models.ConsumedPart `json:"parts"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c)
		}
		parts = req.Parts
	}

	res, err := h.engine.Completion.Complete(c.UserContext(), middleware.ActorFrom(c), id, signature, parts)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    res,
	})
}
