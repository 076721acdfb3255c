package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/db"
)

// Store persists notifications so users who were offline at delivery time
// can still read them later.
type Store interface {
	Insert(ctx context.Context, msg *Message) error
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Message, int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type storePG struct{ pool *pgxpool.Pool }

func NewStorePG(pool *pgxpool.Pool) Store { return &storePG{pool: pool} }

func (s *storePG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return s.pool
}

func (s *storePG) Insert(ctx context.Context, msg *Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return err
	}
	_, err = s.conn(ctx).Exec(ctx, `
		INSERT INTO notifications (id, user_id, event, payload, read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, NOW())`,
		msg.ID, msg.UserID, msg.Event, payload)
	return err
}

func (s *storePG) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Message, int, error) {
	filter := ``
	if unreadOnly {
		filter = ` AND read = FALSE`
	}

	var total int
	if err := s.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1`+filter, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.conn(ctx).Query(ctx, `
		SELECT id, user_id, event, payload, read, created_at
		FROM notifications WHERE user_id = $1`+filter+`
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Message
	for rows.Next() {
		var m Message
		var payload []byte
		if err := rows.Scan(&m.ID, &m.UserID, &m.Event, &payload, &m.Read, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &m.Payload); err != nil {
				return nil, 0, err
			}
		}
		items = append(items, &m)
	}
	return items, total, rows.Err()
}

func (s *storePG) MarkRead(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE id = $1 AND user_id = $2 AND read = FALSE`,
		id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
