package booking

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

const bookingCols = `id, requester_id, kind, doctor_id, hospital_id, service_id,
	day, requested_min, allocated_min, allocated_at, serial, status,
	notes, lat, lng, bed_reserved, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var doctorID, hospitalID, serviceID *uuid.UUID
	var notes *string
	err := row.Scan(&b.ID, &b.RequesterID, &b.Ref.Kind, &doctorID, &hospitalID, &serviceID,
		&b.Day, &b.RequestedMin, &b.AllocatedMin, &b.AllocatedAt, &b.Serial, &b.Status,
		&notes, &b.Lat, &b.Lng, &b.BedReserved, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if doctorID != nil {
		b.Ref.DoctorID = *doctorID
	}
	if hospitalID != nil {
		b.Ref.HospitalID = *hospitalID
	}
	if serviceID != nil {
		b.Ref.ServiceID = *serviceID
	}
	if notes != nil {
		b.Notes = *notes
	}
	return &b, nil
}

// nilIfZero maps the zero UUID to SQL NULL.
func nilIfZero(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// refWhere builds the provider identity filter starting at placeholder idx.
func refWhere(ref ProviderRef, idx int) (string, []interface{}) {
	if ref.Kind == KindDoctor {
		return fmt.Sprintf(` AND kind = $%d AND doctor_id = $%d AND hospital_id = $%d`, idx, idx+1, idx+2),
			[]interface{}{ref.Kind, ref.DoctorID, ref.HospitalID}
	}
	return fmt.Sprintf(` AND kind = $%d AND service_id = $%d`, idx, idx+1),
		[]interface{}{ref.Kind, ref.ServiceID}
}

func (r *repoPG) Create(ctx context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	var notes *string
	if b.Notes != "" {
		notes = &b.Notes
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO bookings (id, requester_id, kind, doctor_id, hospital_id, service_id,
			day, requested_min, allocated_min, allocated_at, serial, status, notes, lat, lng)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		b.ID, b.RequesterID, b.Ref.Kind,
		nilIfZero(b.Ref.DoctorID), nilIfZero(b.Ref.HospitalID), nilIfZero(b.Ref.ServiceID),
		b.Day, b.RequestedMin, b.AllocatedMin, b.AllocatedAt, b.Serial, b.Status,
		notes, b.Lat, b.Lng)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := scanBooking(r.conn(ctx).QueryRow(ctx,
		`SELECT `+bookingCols+` FROM bookings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (r *repoPG) CountActive(ctx context.Context, ref ProviderRef, day time.Time) (int, error) {
	where, args := refWhere(ref, 2)
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE day = $1`+where+` AND status IN ('booked','confirmed')`,
		append([]interface{}{day}, args...)...).Scan(&count)
	return count, err
}

func (r *repoPG) TakenMinutes(ctx context.Context, ref ProviderRef, day time.Time) (map[int]bool, error) {
	where, args := refWhere(ref, 2)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT allocated_min FROM bookings WHERE day = $1`+where+` AND status IN ('booked','confirmed')`,
		append([]interface{}{day}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	taken := make(map[int]bool)
	for rows.Next() {
		var min int
		if err := rows.Scan(&min); err != nil {
			return nil, err
		}
		taken[min] = true
	}
	return taken, rows.Err()
}

func (r *repoPG) HasActive(ctx context.Context, requesterID uuid.UUID, ref ProviderRef, day time.Time) (bool, error) {
	where, args := refWhere(ref, 3)
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE requester_id = $1 AND day = $2`+where+` AND status IN ('booked','confirmed')
		)`,
		append([]interface{}{requesterID, day}, args...)...).Scan(&exists)
	return exists, err
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bookings SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) SetBedReserved(ctx context.Context, id uuid.UUID, reserved bool) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bookings SET bed_reserved = $2, updated_at = NOW()
		WHERE id = $1 AND bed_reserved = NOT $2`,
		id, reserved)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) ListByRequester(ctx context.Context, requesterID uuid.UUID, status Status, limit, offset int) ([]*Booking, int, error) {
	query := `SELECT ` + bookingCols + ` FROM bookings WHERE requester_id = $1`
	countQuery := `SELECT COUNT(*) FROM bookings WHERE requester_id = $1`
	args := []interface{}{requesterID}
	idx := 2

	if status != "" {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY day DESC, allocated_min DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListByProvider(ctx context.Context, ref ProviderRef, day time.Time, limit, offset int) ([]*Booking, int, error) {
	where, args := refWhere(ref, 2)
	all := append([]interface{}{day}, args...)

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE day = $1`+where, all...).Scan(&total); err != nil {
		return nil, 0, err
	}

	idx := len(all) + 1
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+bookingCols+` FROM bookings WHERE day = $1`+where+
			fmt.Sprintf(` ORDER BY serial ASC LIMIT $%d OFFSET $%d`, idx, idx+1),
		append(all, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}
