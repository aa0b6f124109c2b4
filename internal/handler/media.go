package handler

import (
	"errors"
	"log"

	"github.com/Mokona5901/ChatApp/internal/service"

	"github.com/gofiber/fiber/v2"
)

type MediaHandler struct {
	mediaSvc *service.MediaService
}

func NewMediaHandler(mediaSvc *service.MediaService) *MediaHandler {
	return &MediaHandler{mediaSvc: mediaSvc}
}

// Upload pushes a base64 image to the media host.
// POST /api/v1/upload-image  body {"image": "data:image/png;base64,..."}
func (h *MediaHandler) Upload(c *fiber.Ctx) error {
	var req struct {
		Image string `json:"image"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Image == "" {
		return c.Status(400).JSON(fiber.Map{"error": "image is required"})
	}

	result, err := h.mediaSvc.UploadImage(c.Context(), req.Image)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImageTooLarge):
			return c.Status(413).JSON(fiber.Map{"error": "image exceeds size limit"})
		case errors.Is(err, service.ErrUpstream):
			log.Printf("[Media] upload failed: %v", err)
			return c.Status(502).JSON(fiber.Map{"error": "image upload failed"})
		default:
			return c.Status(400).JSON(fiber.Map{"error": "invalid image payload"})
		}
	}

	return c.JSON(fiber.Map{"success": true, "url": result.URL, "deleteUrl": result.DeleteURL})
}

// SearchGIFs proxies a search to the GIF provider.
// GET /api/v1/search-gifs?q=cats
func (h *MediaHandler) SearchGIFs(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(400).JSON(fiber.Map{"error": "q is required"})
	}
	limit := c.QueryInt("limit", 20)

	results, err := h.mediaSvc.SearchGIFs(c.Context(), query, limit)
	if err != nil {
		log.Printf("[Media] gif search %q failed: %v", query, err)
		return c.Status(502).JSON(fiber.Map{"error": "gif search failed"})
	}

	return c.JSON(fiber.Map{"results": results})
}
