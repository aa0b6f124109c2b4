package handler

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/Mokona5901/ChatApp/internal/model"
	"github.com/Mokona5901/ChatApp/internal/service"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const readDeadline = 60 * time.Second

type WSHandler struct {
	hub     *service.Hub
	chatSvc *service.ChatService
	authSvc *service.AuthService
}

func NewWSHandler(hub *service.Hub, chatSvc *service.ChatService, authSvc *service.AuthService) *WSHandler {
	return &WSHandler{hub: hub, chatSvc: chatSvc, authSvc: authSvc}
}

// Upgrade authenticates the access token from the query string and hands
// the connection to the realtime loop. No session is created when the
// identity cannot be established.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		token := c.Query("token")
		if token == "" {
			return c.Status(401).JSON(fiber.Map{"error": "token required"})
		}

		userID, username, err := h.authSvc.ValidateAccessToken(token)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "invalid token"})
		}

		c.Locals("user_id", userID)
		c.Locals("username", username)
		return websocket.New(h.handleConnection)(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *WSHandler) handleConnection(c *websocket.Conn) {
	userID, _ := c.Locals("user_id").(string)
	username, _ := c.Locals("username").(string)

	client := &service.Client{
		Conn:     c,
		UserID:   userID,
		Username: username,
		Channel:  model.DefaultChannel,
		Send:     make(chan []byte, 256),
	}

	h.hub.Register(client)
	defer func() {
		h.hub.Unregister(client)
		h.chatSvc.Disconnect(context.Background(), client)
	}()

	// Writer goroutine
	go func() {
		defer c.Close()
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	h.chatSvc.Connect(context.Background(), client)

	// Reader loop: events for this connection are handled one at a time
	// in arrival order.
	c.SetReadDeadline(time.Now().Add(readDeadline))
	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			break
		}
		c.SetReadDeadline(time.Now().Add(readDeadline))

		var event model.WSEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			continue
		}

		switch event.Type {
		case model.EventPing:
			h.hub.SendTo(client, &model.WSEvent{Type: model.EventPong})

		case model.EventJoinChannel:
			var channel string
			if err := json.Unmarshal(event.Data, &channel); err != nil {
				continue
			}
			h.chatSvc.JoinChannel(context.Background(), client, channel)

		case model.EventChatMessage:
			var payload model.ChatPayload
			if err := json.Unmarshal(event.Data, &payload); err != nil {
				continue
			}
			h.chatSvc.PostMessage(context.Background(), client, payload)

		default:
			log.Printf("[WS] unknown event type %q from %s", event.Type, username)
		}
	}
}
