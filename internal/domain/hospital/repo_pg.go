package hospital

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const hospitalCols = `id, name, address, lat, lng, admin_user_id, total_beds, available_beds,
	created_at, updated_at`

func scanHospital(row pgx.Row) (*Hospital, error) {
	var h Hospital
	var address *string
	err := row.Scan(&h.ID, &h.Name, &address, &h.Lat, &h.Lng, &h.AdminUserID,
		&h.TotalBeds, &h.AvailableBeds, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if address != nil {
		h.Address = *address
	}
	return &h, nil
}

func (r *repoPG) Create(ctx context.Context, h *Hospital) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	now := time.Now().UTC()
	h.CreatedAt, h.UpdatedAt = now, now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO hospitals (id, name, address, lat, lng, admin_user_id,
			total_beds, available_beds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		h.ID, h.Name, h.Address, h.Lat, h.Lng, h.AdminUserID,
		h.TotalBeds, h.AvailableBeds, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert hospital: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	h, err := scanHospital(r.conn(ctx).QueryRow(ctx,
		`SELECT `+hospitalCols+` FROM hospitals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hospital: %w", err)
	}
	return h, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Hospital, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM hospitals`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count hospitals: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+hospitalCols+` FROM hospitals ORDER BY name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list hospitals: %w", err)
	}
	defer rows.Close()

	var out []*Hospital
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, h)
	}
	return out, total, rows.Err()
}

// DecrementBeds claims one bed. The WHERE clause is the floor: zero rows
// affected means the pool is empty.
func (r *repoPG) DecrementBeds(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE hospitals SET available_beds = available_beds - 1, updated_at = NOW()
		WHERE id = $1 AND available_beds > 0`, id)
	if err != nil {
		return false, fmt.Errorf("decrement beds: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementBeds returns one bed, never exceeding the configured total.
func (r *repoPG) IncrementBeds(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE hospitals SET available_beds = available_beds + 1, updated_at = NOW()
		WHERE id = $1 AND available_beds < total_beds`, id)
	if err != nil {
		return false, fmt.Errorf("increment beds: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) SetBeds(ctx context.Context, id uuid.UUID, total, available int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE hospitals SET total_beds = $2, available_beds = $3, updated_at = NOW()
		WHERE id = $1`, id, total, available)
	if err != nil {
		return fmt.Errorf("set beds: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
