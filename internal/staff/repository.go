package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound       = errors.New("staff member not found")
	ErrInvalid        = errors.New("invalid staff member")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrAlreadyOnShift = errors.New("staff member is already clocked in")
	ErrNotOnShift     = errors.New("staff member is not clocked in")
	ErrInactive       = errors.New("staff member is inactive")
)

const uniqueViolation = "23505"

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	Create(ctx context.Context, m *Member) error
	Get(ctx context.Context, id string) (Member, error)
	List(ctx context.Context, f Filter) ([]Member, error)
	Update(ctx context.Context, m *Member) error
	Deactivate(ctx context.Context, id string) error
	OpenShift(ctx context.Context, s *Shift) error
	CloseShift(ctx context.Context, staffID string, at time.Time) (Shift, error)
	Shifts(ctx context.Context, staffID string, limit int) ([]Shift, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectMember = `SELECT id, name, email, phone, role, active, created_at, updated_at FROM staff_members`

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Role, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// malformedID reports SQLSTATE 22P02, which Postgres raises when an id
// parameter is not a valid UUID. No row can match such an id.
func malformedID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func (r *PostgresRepository) Create(ctx context.Context, m *Member) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO staff_members (id, name, email, phone, role, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, m.ID, m.Name, m.Email, m.Phone, string(m.Role), m.Active).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert staff member: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Member, error) {
	m, err := scanMember(r.pool.QueryRow(ctx, selectMember+` WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || malformedID(err) {
			return Member{}, ErrNotFound
		}
		return Member{}, fmt.Errorf("select staff member: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Member, error) {
	var (
		where []string
		args  []any
	)
	if !f.IncludeInactive {
		where = append(where, "active")
	}
	if f.Role != "" {
		args = append(args, string(f.Role))
		where = append(where, fmt.Sprintf("role=$%d", len(args)))
	}
	q := selectMember
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY name, id"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select staff: %w", err)
	}
	defer rows.Close()

	out := []Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan staff member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, m *Member) error {
	updated, err := scanMember(r.pool.QueryRow(ctx, `
		UPDATE staff_members SET name=$2, email=$3, phone=$4, role=$5, updated_at=now()
		WHERE id=$1
		RETURNING id, name, email, phone, role, active, created_at, updated_at
	`, m.ID, m.Name, m.Email, m.Phone, string(m.Role)))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows), malformedID(err):
			return ErrNotFound
		case isUniqueViolation(err):
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update staff member: %w", err)
	}
	*m = updated
	return nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE staff_members SET active=false, updated_at=now() WHERE id=$1`, id)
	if malformedID(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("deactivate staff member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// OpenShift relies on the partial unique index on open shifts, so two
// concurrent clock-ins cannot both succeed.
func (r *PostgresRepository) OpenShift(ctx context.Context, s *Shift) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff_shifts (id, staff_id, clock_in) VALUES ($1, $2, $3)
	`, s.ID, s.StaffID, s.ClockIn)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyOnShift
		}
		return fmt.Errorf("open shift: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CloseShift(ctx context.Context, staffID string, at time.Time) (Shift, error) {
	var s Shift
	err := r.pool.QueryRow(ctx, `
		UPDATE staff_shifts SET clock_out=$2
		WHERE staff_id=$1 AND clock_out IS NULL
		RETURNING id, staff_id, clock_in, clock_out
	`, staffID, at).Scan(&s.ID, &s.StaffID, &s.ClockIn, &s.ClockOut)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shift{}, ErrNotOnShift
		}
		return Shift{}, fmt.Errorf("close shift: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Shifts(ctx context.Context, staffID string, limit int) ([]Shift, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, staff_id, clock_in, clock_out
		FROM staff_shifts WHERE staff_id=$1
		ORDER BY clock_in DESC
		LIMIT $2
	`, staffID, limit)
	if err != nil {
		return nil, fmt.Errorf("select shifts: %w", err)
	}
	defer rows.Close()

	out := []Shift{}
	for rows.Next() {
		var s Shift
		if err := rows.Scan(&s.ID, &s.StaffID, &s.ClockIn, &s.ClockOut); err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
