package handler

import (
	"errors"
	"log"
	"strconv"

	"github.com/Mokona5901/ChatApp/internal/model"
	"github.com/Mokona5901/ChatApp/internal/service"

	"github.com/gofiber/fiber/v2"
)

type MessageHandler struct {
	chatSvc *service.ChatService
}

func NewMessageHandler(chatSvc *service.ChatService) *MessageHandler {
	return &MessageHandler{chatSvc: chatSvc}
}

// History returns one page of channel history, oldest first.
// GET /messages?skip=0&channel=general
func (h *MessageHandler) History(c *fiber.Ctx) error {
	skip, _ := strconv.Atoi(c.Query("skip", "0"))
	if skip < 0 {
		skip = 0
	}
	channel := c.Query("channel", model.DefaultChannel)

	msgs, err := h.chatSvc.History(c.Context(), channel, skip)
	if err != nil {
		log.Printf("[Messages] history %s skip=%d failed: %v", channel, skip, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to load messages"})
	}
	return c.JSON(msgs)
}

// Edit replaces the text of the caller's own message.
// PUT /messages/:id  body {"newMessage": "..."}
func (h *MessageHandler) Edit(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid message id"})
	}

	var req model.EditRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.NewMessage == "" {
		return c.Status(400).JSON(fiber.Map{"error": "newMessage is required"})
	}

	// Ownership is checked against the authenticated identity, never a
	// body field.
	username, _ := c.Locals("username").(string)

	msg, err := h.chatSvc.Edit(c.Context(), username, id, req.NewMessage)
	if err != nil {
		return messageError(c, err)
	}
	return c.JSON(msg)
}

// Delete removes the caller's own message.
// DELETE /messages/:id
func (h *MessageHandler) Delete(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid message id"})
	}

	username, _ := c.Locals("username").(string)

	if err := h.chatSvc.Delete(c.Context(), username, id); err != nil {
		return messageError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func messageError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "message not found"})
	case errors.Is(err, service.ErrForbidden):
		return c.Status(403).JSON(fiber.Map{"error": "not your message"})
	default:
		log.Printf("[Messages] operation failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
}
