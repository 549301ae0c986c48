package categories

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/eventhub/internal/platform/db"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

// RepositoryPort defines data access methods for categories.
type RepositoryPort interface {
	List(ctx context.Context) ([]Category, error)
	Get(ctx context.Context, id int64) (Category, error)
	Create(ctx context.Context, name string, description *string) (Category, error)
	Update(ctx context.Context, id int64, name string, description *string) error
	Delete(ctx context.Context, actorID, id int64) (int, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool  *pgxpool.Pool
	audit *shared.AuditLogger
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, audit *shared.AuditLogger) *Repository {
	return &Repository{pool: pool, audit: audit}
}

const selectCategory = `SELECT c.id, c.name, c.description,
	(SELECT COUNT(*) FROM events e WHERE e.category_id = c.id)::int
	FROM categories c`

// List returns every category with its event count.
func (r *Repository) List(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, selectCategory+` ORDER BY c.name, c.id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Category])
}

// Get fetches a category by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Category, error) {
	rows, err := r.pool.Query(ctx, selectCategory+` WHERE c.id = $1`, id)
	if err != nil {
		return Category{}, err
	}
	category, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[Category])
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, shared.ErrNotFound
	}
	return category, err
}

// Create inserts a category.
func (r *Repository) Create(ctx context.Context, name string, description *string) (Category, error) {
	c := Category{Name: name, Description: description}
	err := r.pool.QueryRow(ctx, `INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING id`, name, description).Scan(&c.ID)
	return c, err
}

// Update stores the category fields.
func (r *Repository) Update(ctx context.Context, id int64, name string, description *string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE categories SET name = $2, description = $3 WHERE id = $1`, id, name, description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a category. Its events and their reservations go with it
// through ON DELETE CASCADE. It returns the number of events removed.
func (r *Repository) Delete(ctx context.Context, actorID, id int64) (int, error) {
	var removed int
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var name string
		if err := tx.QueryRow(ctx, `SELECT name FROM categories WHERE id = $1 FOR UPDATE`, id).Scan(&name); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE category_id = $1`, id).Scan(&removed); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
			return err
		}
		return r.audit.Record(ctx, tx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "categories.delete",
			Entity:   "category",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"name": name, "events_removed": removed},
		})
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

var _ RepositoryPort = (*Repository)(nil)
