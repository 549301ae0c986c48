package reservations

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/eventhub/internal/catalog/events"
	"github.com/odyssey-erp/eventhub/internal/platform/db"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

const uniqueUserEvent = "uq_rsvps_user_event"

// RepositoryPort defines data access methods for reservations.
type RepositoryPort interface {
	Exists(ctx context.Context, userID, eventID int64) (bool, error)
	Create(ctx context.Context, userID, eventID int64) (Reservation, error)
	ListForUser(ctx context.Context, userID int64) ([]events.Event, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Exists reports whether userID already reserved eventID.
func (r *Repository) Exists(ctx context.Context, userID, eventID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rsvps WHERE user_id = $1 AND event_id = $2)`, userID, eventID).Scan(&exists)
	return exists, err
}

// Create inserts a reservation. A concurrent duplicate surfaces as
// ErrAlreadyReserved and an event deleted meanwhile as ErrNotFound.
func (r *Repository) Create(ctx context.Context, userID, eventID int64) (Reservation, error) {
	res := Reservation{UserID: userID, EventID: eventID}
	err := r.pool.QueryRow(ctx, `INSERT INTO rsvps (user_id, event_id) VALUES ($1, $2) RETURNING id, created_at`,
		userID, eventID).Scan(&res.ID, &res.CreatedAt)
	switch {
	case err == nil:
		return res, nil
	case db.IsUniqueViolation(err, uniqueUserEvent):
		return Reservation{}, ErrAlreadyReserved
	case db.IsForeignKeyViolation(err, ""):
		return Reservation{}, shared.ErrNotFound
	default:
		return Reservation{}, err
	}
}

// ListForUser returns the events userID reserved, soonest first.
func (r *Repository) ListForUser(ctx context.Context, userID int64) ([]events.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id, e.name, e.description, e.date, to_char(e.time, 'HH24:MI'), e.location,
			e.category_id, c.name, e.image_ref
		FROM rsvps r
		JOIN events e ON e.id = r.event_id
		JOIN categories c ON c.id = e.category_id
		WHERE r.user_id = $1
		ORDER BY e.date, e.time, e.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []events.Event
	for rows.Next() {
		var e events.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.Date, &e.Time, &e.Location, &e.CategoryID, &e.CategoryName, &e.ImageRef); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ RepositoryPort = (*Repository)(nil)
