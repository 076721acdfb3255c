package provider

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

const doctorCols = `id, user_id, hospital_id, full_name, specialty, active, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.HospitalID, &d.FullName, &d.Specialty,
		&d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoPG) CreateDoctor(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctors (id, user_id, hospital_id, full_name, specialty, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.UserID, d.HospitalID, d.FullName, d.Specialty, d.Active, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *repoPG) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return d, nil
}

func (r *repoPG) ListDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if f.HospitalID != nil {
		where += fmt.Sprintf(` AND hospital_id = $%d`, idx)
		args = append(args, *f.HospitalID)
		idx++
	}
	if f.Specialty != "" {
		where += fmt.Sprintf(` AND specialty = $%d`, idx)
		args = append(args, f.Specialty)
		idx++
	}
	if f.ActiveOnly {
		where += ` AND active`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	query := `SELECT ` + doctorCols + ` FROM doctors` + where +
		fmt.Sprintf(` ORDER BY full_name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (r *repoPG) SetDoctorActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE doctors SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set doctor active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const serviceCols = `id, hospital_id, name, window_start_min, window_end_min, slot_minutes,
	capacity_per_day, immediate, requires_bed, active, created_at, updated_at`

func scanService(row pgx.Row) (*HospitalService, error) {
	var s HospitalService
	err := row.Scan(&s.ID, &s.HospitalID, &s.Name, &s.WindowStartMin, &s.WindowEndMin,
		&s.SlotMinutes, &s.CapacityPerDay, &s.Immediate, &s.RequiresBed, &s.Active,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) CreateService(ctx context.Context, s *HospitalService) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO hospital_services (id, hospital_id, name, window_start_min, window_end_min,
			slot_minutes, capacity_per_day, immediate, requires_bed, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.HospitalID, s.Name, s.WindowStartMin, s.WindowEndMin,
		s.SlotMinutes, s.CapacityPerDay, s.Immediate, s.RequiresBed, s.Active,
		s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

func (r *repoPG) GetService(ctx context.Context, id uuid.UUID) (*HospitalService, error) {
	s, err := scanService(r.conn(ctx).QueryRow(ctx,
		`SELECT `+serviceCols+` FROM hospital_services WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return s, nil
}

func (r *repoPG) ListServices(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*HospitalService, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM hospital_services WHERE hospital_id = $1`, hospitalID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count services: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+serviceCols+` FROM hospital_services
		WHERE hospital_id = $1 ORDER BY name LIMIT $2 OFFSET $3`,
		hospitalID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []*HospitalService
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *repoPG) SetServiceActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE hospital_services SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set service active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const windowCols = `id, doctor_id, hospital_id, weekday, start_min, end_min, slot_minutes,
	capacity_per_day, created_at`

func scanWindow(row pgx.Row) (*AvailabilityWindow, error) {
	var w AvailabilityWindow
	var weekday int
	err := row.Scan(&w.ID, &w.DoctorID, &w.HospitalID, &weekday, &w.StartMin, &w.EndMin,
		&w.SlotMinutes, &w.CapacityPerDay, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	w.Weekday = time.Weekday(weekday)
	return &w, nil
}

func (r *repoPG) CreateWindow(ctx context.Context, w *AvailabilityWindow) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.CreatedAt = time.Now().UTC()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO availability_windows (id, doctor_id, hospital_id, weekday, start_min,
			end_min, slot_minutes, capacity_per_day, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		w.ID, w.DoctorID, w.HospitalID, int(w.Weekday), w.StartMin, w.EndMin,
		w.SlotMinutes, w.CapacityPerDay, w.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert window: %w", err)
	}
	return nil
}

func (r *repoPG) DeleteWindow(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM availability_windows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListWindows(ctx context.Context, doctorID uuid.UUID) ([]*AvailabilityWindow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+windowCols+` FROM availability_windows
		WHERE doctor_id = $1 ORDER BY weekday, start_min`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	defer rows.Close()

	var out []*AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *repoPG) WindowsForWeekday(ctx context.Context, doctorID, hospitalID uuid.UUID, weekday time.Weekday) ([]*AvailabilityWindow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+windowCols+` FROM availability_windows
		WHERE doctor_id = $1 AND hospital_id = $2 AND weekday = $3
		ORDER BY start_min`, doctorID, hospitalID, int(weekday))
	if err != nil {
		return nil, fmt.Errorf("windows for weekday: %w", err)
	}
	defer rows.Close()

	var out []*AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *repoPG) HospitalAdmin(ctx context.Context, hospitalID uuid.UUID) (uuid.UUID, error) {
	var admin uuid.UUID
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT admin_user_id FROM hospitals WHERE id = $1`, hospitalID).Scan(&admin)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("hospital admin: %w", err)
	}
	return admin, nil
}
