package model

import "time"

// Message types. Status rows are system-generated (join/leave notices)
// and carry a NULL username.
const (
	TypeChat   = "chat"
	TypeStatus = "status"
	TypeImage  = "image"
	TypeTenor  = "tenor"
)

// DefaultChannel is the channel every connection starts in.
const DefaultChannel = "general"

// ReplyRef is a denormalized snapshot of the replied-to message taken at
// reply time. It is never updated when the target is edited or deleted,
// so the displayed reply text may go stale.
type ReplyRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

// Message represents a stored chat message row.
type Message struct {
	ID        int64     `json:"id"`
	Username  *string   `json:"username"` // nil for system/status messages
	Channel   string    `json:"channel"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	PostID    string    `json:"postId,omitempty"`
	ReplyTo   *ReplyRef `json:"replyTo,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IsOwnedBy reports whether username authored the message. System rows
// (nil username) are owned by nobody.
func (m *Message) IsOwnedBy(username string) bool {
	return m.Username != nil && *m.Username == username
}

// ChatPayload is the client payload of an inbound "chat message" event.
// At most one content form (message, imageUrl or postId) is expected;
// the server copies the fields as provided.
type ChatPayload struct {
	Message  string    `json:"message"`
	ImageURL string    `json:"imageUrl"`
	PostID   string    `json:"postId"`
	Type     string    `json:"type"`
	ReplyTo  *ReplyRef `json:"replyTo"`
}

// EditRequest is the body of PUT /messages/:id. The author is taken from
// the authenticated request, never from the body.
type EditRequest struct {
	NewMessage string `json:"newMessage"`
}

// GIFResult is one hit returned by the GIF search proxy.
type GIFResult struct {
	ID         string `json:"id"`
	PreviewURL string `json:"previewUrl"`
}
