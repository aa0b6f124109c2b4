package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Mokona5901/ChatApp/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by point lookups when no message has the
// requested id.
var ErrNotFound = errors.New("message not found")

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Insert stores a message and fills in its server-assigned id and
// timestamp.
func (r *MessageRepository) Insert(ctx context.Context, msg *model.Message) error {
	replyJSON, err := marshalReply(msg.ReplyTo)
	if err != nil {
		return fmt.Errorf("marshal reply_to: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO messages (username, channel, type, message, image_url, post_id, reply_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, msg.Username, msg.Channel, msg.Type, msg.Message, msg.ImageURL, msg.PostID, replyJSON).
		Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Page returns up to limit messages for the channel, skipping the newest
// skip rows, in chronological order. Rows are fetched newest-first and
// reversed so the client can append them top-down.
func (r *MessageRepository) Page(ctx context.Context, channel string, skip, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, username, channel, type, message, image_url, post_id, reply_to, created_at
		FROM messages
		WHERE channel = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, channel, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("page messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("page messages: %w", err)
	}

	// Reverse for chronological order (oldest first)
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return msgs, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, channel, type, message, image_url, post_id, reply_to, created_at
		FROM messages
		WHERE id = $1
	`, id)

	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// UpdateText mutates only the text body; all other columns are immutable
// once the row is created.
func (r *MessageRepository) UpdateText(ctx context.Context, id int64, newText string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages SET message = $2 WHERE id = $1
	`, id, newText)
	if err != nil {
		return fmt.Errorf("update message %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MessageRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM messages WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete message %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOlderThan removes messages older than the given number of days.
// Returns the number of deleted rows.
func (r *MessageRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM messages WHERE created_at < NOW() - make_interval(days => $1)
	`, days)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (model.Message, error) {
	var (
		m         model.Message
		replyJSON []byte
	)
	if err := row.Scan(&m.ID, &m.Username, &m.Channel, &m.Type, &m.Message, &m.ImageURL, &m.PostID, &replyJSON, &m.Timestamp); err != nil {
		return model.Message{}, err
	}
	if len(replyJSON) > 0 {
		var ref model.ReplyRef
		if err := json.Unmarshal(replyJSON, &ref); err != nil {
			return model.Message{}, fmt.Errorf("unmarshal reply_to: %w", err)
		}
		m.ReplyTo = &ref
	}
	return m, nil
}

func marshalReply(ref *model.ReplyRef) ([]byte, error) {
	if ref == nil {
		return nil, nil
	}
	return json.Marshal(ref)
}
