package events

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	catalog "github.com/odyssey-erp/eventhub/internal/catalog/shared"
	"github.com/odyssey-erp/eventhub/internal/platform/db"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

// ErrUnknownCategory is returned when an event references a missing category.
var ErrUnknownCategory = errors.New("events: unknown category")

// Record is a validated event ready to be stored.
type Record struct {
	Name        string
	Description string
	Date        time.Time
	Time        string
	Location    string
	CategoryID  int64
	ImageRef    *string
}

// RepositoryPort defines data access methods for events.
type RepositoryPort interface {
	List(ctx context.Context, filters catalog.ListFilters) ([]Event, int, error)
	Get(ctx context.Context, id int64) (Event, error)
	Create(ctx context.Context, rec Record) (int64, error)
	Update(ctx context.Context, id int64, rec Record) error
	Delete(ctx context.Context, actorID, id int64) error
	CategoryOptions(ctx context.Context) ([]CategoryOption, error)
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

const eventColumns = `e.id, e.name, e.description, e.date, to_char(e.time, 'HH24:MI'), e.location, e.category_id, c.name, e.image_ref`

func scanEvent(row pgx.Row) (Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Date, &e.Time, &e.Location, &e.CategoryID, &e.CategoryName, &e.ImageRef)
	return e, err
}

// whereClause builds the search and bucket predicates for List.
func whereClause(filters catalog.ListFilters, args []any) (string, []any) {
	var clauses []string
	if pattern := catalog.SearchPattern(filters.Search); pattern != "" {
		args = append(args, pattern)
		n := "$" + strconv.Itoa(len(args))
		clauses = append(clauses, "(e.name ILIKE "+n+" OR e.location ILIKE "+n+")")
	}
	if filters.Bucket != catalog.BucketAll && filters.Bucket != "" {
		args = append(args, filters.Today.Format("2006-01-02"))
		clauses = append(clauses, filters.Bucket.SQL("e.date", "$"+strconv.Itoa(len(args))+"::date"))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns one page of events matching filters plus the total match count.
func (r *Repository) List(ctx context.Context, filters catalog.ListFilters) ([]Event, int, error) {
	filters = filters.Normalize()
	where, args := whereClause(filters, nil)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events e`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filters.Limit, filters.Offset())
	query := `SELECT ` + eventColumns + ` FROM events e JOIN categories c ON c.id = e.category_id` + where +
		` ORDER BY e.date, e.time, e.id LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

// Get fetches an event by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events e JOIN categories c ON c.id = e.category_id WHERE e.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, shared.ErrNotFound
	}
	return e, err
}

// Create inserts an event.
func (r *Repository) Create(ctx context.Context, rec Record) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO events (name, description, date, time, location, category_id, image_ref)
		VALUES ($1, $2, $3, $4::time, $5, $6, $7) RETURNING id`,
		rec.Name, rec.Description, rec.Date, rec.Time, rec.Location, rec.CategoryID, rec.ImageRef).Scan(&id)
	if db.IsForeignKeyViolation(err, "") {
		return 0, ErrUnknownCategory
	}
	return id, err
}

// Update stores the event fields.
func (r *Repository) Update(ctx context.Context, id int64, rec Record) error {
	tag, err := r.pool.Exec(ctx, `UPDATE events SET name = $2, description = $3, date = $4, time = $5::time,
		location = $6, category_id = $7, image_ref = $8 WHERE id = $1`,
		id, rec.Name, rec.Description, rec.Date, rec.Time, rec.Location, rec.CategoryID, rec.ImageRef)
	if err != nil {
		if db.IsForeignKeyViolation(err, "") {
			return ErrUnknownCategory
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes an event; its reservations cascade. The category is kept.
func (r *Repository) Delete(ctx context.Context, actorID, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var name string
		var reservations int
		err := tx.QueryRow(ctx, `DELETE FROM events e WHERE e.id = $1
			RETURNING e.name, (SELECT COUNT(*) FROM rsvps r WHERE r.event_id = e.id)::int`, id).Scan(&name, &reservations)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		return r.audit.Record(ctx, tx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "events.delete",
			Entity:   "event",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"name": name, "reservations_removed": reservations},
		})
	})
}

// CategoryOptions lists categories for the event form.
func (r *Repository) CategoryOptions(ctx context.Context) ([]CategoryOption, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[CategoryOption])
}

var _ RepositoryPort = (*Repository)(nil)
