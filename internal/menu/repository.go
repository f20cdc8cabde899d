package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("menu item not found")
	ErrInvalid  = errors.New("invalid menu item")
)

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	Create(ctx context.Context, it *Item) error
	Get(ctx context.Context, id string) (Item, error)
	GetMany(ctx context.Context, ids []string) (map[string]Item, error)
	List(ctx context.Context, f Filter) ([]Item, error)
	Update(ctx context.Context, it *Item) error
	Delete(ctx context.Context, id string) error
	SetAvailability(ctx context.Context, id string, available bool) error
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectItem = `SELECT id, name, description, category, price, image_url, available, created_at, updated_at FROM menu_items`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.Category, &it.Price, &it.ImageURL, &it.Available, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// malformedID reports SQLSTATE 22P02, which Postgres raises when an id
// parameter is not a valid UUID. No row can match such an id.
func malformedID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func (r *PostgresRepository) Create(ctx context.Context, it *Item) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO menu_items (id, name, description, category, price, image_url, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, it.ID, it.Name, it.Description, it.Category, it.Price, it.ImageURL, it.Available).Scan(&it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert menu item: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Item, error) {
	it, err := scanItem(r.pool.QueryRow(ctx, selectItem+` WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || malformedID(err) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("select menu item: %w", err)
	}
	return it, nil
}

// GetMany loads the given items keyed by id; missing ids are simply absent.
func (r *PostgresRepository) GetMany(ctx context.Context, ids []string) (map[string]Item, error) {
	rows, err := r.pool.Query(ctx, selectItem+` WHERE id = ANY($1)`, ids)
	if err != nil {
		if malformedID(err) {
			return nil, fmt.Errorf("%w: menu item ids must be UUIDs", ErrInvalid)
		}
		return nil, fmt.Errorf("select menu items: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Item, len(ids))
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		out[it.ID] = it
	}
	return out, rows.Err()
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Item, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category=$%d", len(args)))
	}
	if f.AvailableOnly {
		where = append(where, "available")
	}

	q := selectItem
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY category, name"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, it *Item) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE menu_items
		SET name=$2, description=$3, category=$4, price=$5, image_url=$6, available=$7, updated_at=now()
		WHERE id=$1
		RETURNING created_at, updated_at
	`, it.ID, it.Name, it.Description, it.Category, it.Price, it.ImageURL, it.Available).Scan(&it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || malformedID(err) {
			return ErrNotFound
		}
		return fmt.Errorf("update menu item: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM menu_items WHERE id=$1`, id)
	if malformedID(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete menu item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE menu_items SET available=$2, updated_at=now() WHERE id=$1`, id, available)
	if malformedID(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
