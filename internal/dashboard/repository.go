package dashboard

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	catalog "github.com/odyssey-erp/eventhub/internal/catalog/shared"
	"github.com/odyssey-erp/eventhub/internal/catalog/events"
	"github.com/odyssey-erp/eventhub/internal/platform/db"
)

// RepositoryPort defines the read queries behind the dashboards.
type RepositoryPort interface {
	AdminSnapshot(ctx context.Context, today string) (AdminSnapshot, error)
	CountEvents(ctx context.Context, bucket catalog.Bucket, today string) (int, error)
	EventsIn(ctx context.Context, bucket catalog.Bucket, today string) ([]events.Event, error)
	Participants(ctx context.Context) ([]ParticipantRow, error)
	ReservedEvents(ctx context.Context, userID int64) ([]events.Event, error)
}

// Repository runs dashboard queries on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `e.id, e.name, e.description, e.date, to_char(e.time, 'HH24:MI'), e.location, e.category_id, c.name, e.image_ref`

// bucketWhere returns the WHERE clause for bucket with today as $1.
func bucketWhere(bucket catalog.Bucket) string {
	if cond := bucket.SQL("e.date", "$1::date"); cond != "" {
		return " WHERE " + cond
	}
	return ""
}

func bucketArgs(bucket catalog.Bucket, today string) []any {
	if bucketWhere(bucket) == "" {
		return nil
	}
	return []any{today}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AdminSnapshot reads the admin counts and today's events in one
// repeatable-read transaction, so upcoming plus past always equals the total.
func (r *Repository) AdminSnapshot(ctx context.Context, today string) (AdminSnapshot, error) {
	var snap AdminSnapshot
	err := db.WithSnapshot(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		if snap.TotalEvents, err = countEvents(ctx, tx, catalog.BucketAll, today); err != nil {
			return err
		}
		if snap.UpcomingCount, err = countEvents(ctx, tx, catalog.BucketUpcoming, today); err != nil {
			return err
		}
		if snap.PastCount, err = countEvents(ctx, tx, catalog.BucketPast, today); err != nil {
			return err
		}
		if err = tx.QueryRow(ctx, `SELECT COUNT(DISTINCT user_id) FROM rsvps`).Scan(&snap.TotalParticipants); err != nil {
			return err
		}
		snap.TodaysEvents, err = eventsIn(ctx, tx, catalog.BucketToday, today)
		return err
	})
	if err != nil {
		return AdminSnapshot{}, err
	}
	return snap, nil
}

// CountEvents counts events in bucket. today is YYYY-MM-DD.
func (r *Repository) CountEvents(ctx context.Context, bucket catalog.Bucket, today string) (int, error) {
	return countEvents(ctx, r.pool, bucket, today)
}

func countEvents(ctx context.Context, q querier, bucket catalog.Bucket, today string) (int, error) {
	var n int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM events e`+bucketWhere(bucket), bucketArgs(bucket, today)...).Scan(&n)
	return n, err
}

// EventsIn lists events in bucket ordered by date.
func (r *Repository) EventsIn(ctx context.Context, bucket catalog.Bucket, today string) ([]events.Event, error) {
	return eventsIn(ctx, r.pool, bucket, today)
}

func eventsIn(ctx context.Context, q querier, bucket catalog.Bucket, today string) ([]events.Event, error) {
	rows, err := q.Query(ctx, `SELECT `+eventColumns+` FROM events e JOIN categories c ON c.id = e.category_id`+
		bucketWhere(bucket)+` ORDER BY e.date, e.time, e.id`, bucketArgs(bucket, today)...)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// Participants lists every reservation joined with its user and event.
func (r *Repository) Participants(ctx context.Context) ([]ParticipantRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.username, u.email, e.name, e.date, r.created_at
		FROM rsvps r
		JOIN users u ON u.id = r.user_id
		JOIN events e ON e.id = r.event_id
		ORDER BY e.date, e.name, u.username`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[ParticipantRow])
}

// ReservedEvents lists the events userID reserved.
func (r *Repository) ReservedEvents(ctx context.Context, userID int64) ([]events.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+`
		FROM rsvps r
		JOIN events e ON e.id = r.event_id
		JOIN categories c ON c.id = e.category_id
		WHERE r.user_id = $1
		ORDER BY e.date, e.time, e.id`, userID)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]events.Event, error) {
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
