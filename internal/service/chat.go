package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Mokona5901/ChatApp/internal/metrics"
	"github.com/Mokona5901/ChatApp/internal/model"
	"github.com/Mokona5901/ChatApp/internal/repository"
)

var (
	ErrNotFound  = repository.ErrNotFound
	ErrForbidden = errors.New("not the message author")
)

const (
	// HistoryLimit is the fixed page size for history batches and the
	// /messages endpoint.
	HistoryLimit = 50

	// DisconnectGrace delays the presence decrement after a disconnect
	// so a quick reconnect (page navigation) does not flicker the
	// online list.
	DisconnectGrace = 10 * time.Second
)

// MessageStore is the persistence boundary of the gateway. Implemented
// by repository.MessageRepository; tests substitute an in-memory double.
type MessageStore interface {
	Insert(ctx context.Context, msg *model.Message) error
	Page(ctx context.Context, channel string, skip, limit int) ([]model.Message, error)
	GetByID(ctx context.Context, id int64) (*model.Message, error)
	UpdateText(ctx context.Context, id int64, newText string) error
	Delete(ctx context.Context, id int64) error
}

// MediaDeleter removes externally hosted media. Cleanup is best-effort;
// failures are logged and never surfaced.
type MediaDeleter interface {
	DeleteImage(url string)
}

// ChatService is the realtime gateway: it validates inbound events
// against session state, mutates the message store and presence
// tracker, and fans results out through the hub.
type ChatService struct {
	store    MessageStore
	hub      *Hub
	presence *PresenceTracker
	media    MediaDeleter
	grace    time.Duration
}

func NewChatService(store MessageStore, hub *Hub, presence *PresenceTracker, media MediaDeleter) *ChatService {
	return &ChatService{
		store:    store,
		hub:      hub,
		presence: presence,
		media:    media,
		grace:    DisconnectGrace,
	}
}

// Connect runs the post-registration sequence for a new connection:
// history batch for the default channel to this client only, a persisted
// join notice, then a presence snapshot to everyone.
func (s *ChatService) Connect(ctx context.Context, client *Client) {
	s.sendHistory(ctx, client)
	s.postStatus(ctx, client.Channel, fmt.Sprintf("%s joined the chat", client.Username))

	s.presence.Increment(client.Username)
	s.broadcastPresence()
}

// Disconnect posts the leave notice immediately but delays the presence
// decrement by the grace window. The timer always fires exactly once per
// disconnect; because presence is a count, a reconnect inside the window
// stays correct.
func (s *ChatService) Disconnect(ctx context.Context, client *Client) {
	s.postStatus(ctx, client.Channel, fmt.Sprintf("%s left the chat", client.Username))

	time.AfterFunc(s.grace, func() {
		s.presence.Decrement(client.Username)
		s.broadcastPresence()
	})
}

// JoinChannel moves the session to a new channel and replaces the
// client's history with a fresh batch. Re-joining the current channel
// still resends history, so clients use it as a refresh. Nothing is
// broadcast to others; presence is global, not per-channel.
func (s *ChatService) JoinChannel(ctx context.Context, client *Client, channel string) {
	if channel == "" {
		return
	}
	s.hub.SetChannel(client, channel)
	s.sendHistory(ctx, client)
}

// PostMessage persists an inbound chat message and broadcasts the stored
// form to the sender's current channel. Identity and channel come from
// the session, never from the payload. Persistence failure is logged and
// produces no broadcast; the protocol has no acknowledgment.
func (s *ChatService) PostMessage(ctx context.Context, client *Client, payload model.ChatPayload) {
	msgType := payload.Type
	if msgType == "" {
		msgType = model.TypeChat
	}

	username := client.Username
	msg := &model.Message{
		Username: &username,
		Channel:  client.Channel,
		Type:     msgType,
		Message:  payload.Message,
		ImageURL: payload.ImageURL,
		PostID:   payload.PostID,
		ReplyTo:  payload.ReplyTo,
	}

	if err := s.store.Insert(ctx, msg); err != nil {
		log.Printf("[Chat] store message from %s failed: %v", client.Username, err)
		return
	}

	metrics.MessagesStored.WithLabelValues(msg.Type).Inc()
	s.hub.BroadcastToChannel(msg.Channel, wsEvent(model.EventChatMessage, msg))
}

// History returns one page of a channel's history, oldest first.
func (s *ChatService) History(ctx context.Context, channel string, skip int) ([]model.Message, error) {
	msgs, err := s.store.Page(ctx, channel, skip, HistoryLimit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

// Edit replaces the text of a message owned by username and broadcasts
// the updated record to every connection, regardless of channel, so any
// client that has it rendered updates it.
func (s *ChatService) Edit(ctx context.Context, username string, id int64, newText string) (*model.Message, error) {
	msg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !msg.IsOwnedBy(username) {
		return nil, ErrForbidden
	}

	if err := s.store.UpdateText(ctx, id, newText); err != nil {
		return nil, err
	}
	msg.Message = newText

	s.hub.Broadcast(wsEvent(model.EventMessageEdited, msg))
	return msg, nil
}

// Delete removes a message owned by username, schedules best-effort
// cleanup of any hosted media, and broadcasts the id globally.
func (s *ChatService) Delete(ctx context.Context, username string, id int64) error {
	msg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !msg.IsOwnedBy(username) {
		return ErrForbidden
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	if msg.Type == model.TypeImage && msg.ImageURL != "" && s.media != nil {
		go s.media.DeleteImage(msg.ImageURL)
	}

	s.hub.Broadcast(wsEvent(model.EventMessageDeleted, id))
	return nil
}

func (s *ChatService) sendHistory(ctx context.Context, client *Client) {
	msgs, err := s.store.Page(ctx, client.Channel, 0, HistoryLimit)
	if err != nil {
		log.Printf("[Chat] history for %s/%s failed: %v", client.Username, client.Channel, err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	metrics.HistoryBatches.Inc()
	s.hub.SendTo(client, wsEvent(model.EventChatHistory, msgs))
}

// postStatus persists a system notice (NULL author) and broadcasts it to
// the channel it belongs to.
func (s *ChatService) postStatus(ctx context.Context, channel, text string) {
	msg := &model.Message{
		Username: nil,
		Channel:  channel,
		Type:     model.TypeStatus,
		Message:  text,
	}
	if err := s.store.Insert(ctx, msg); err != nil {
		log.Printf("[Chat] store status %q failed: %v", text, err)
		return
	}
	metrics.MessagesStored.WithLabelValues(model.TypeStatus).Inc()
	s.hub.BroadcastToChannel(channel, wsEvent(model.EventChatMessage, msg))
}

func (s *ChatService) broadcastPresence() {
	s.hub.Broadcast(wsEvent(model.EventOnlineUsers, s.presence.Snapshot()))
}

func wsEvent(eventType string, v any) *model.WSEvent {
	data, err := json.Marshal(v)
	if err != nil {
		return &model.WSEvent{Type: eventType}
	}
	return &model.WSEvent{Type: eventType, Data: data}
}
