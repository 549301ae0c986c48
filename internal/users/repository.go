package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/eventhub/internal/platform/db"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

// Repository defines persistence operations for identities.
type Repository interface {
	Create(ctx context.Context, identity Identity, defaultGroup string) (Identity, error)
	Get(ctx context.Context, id int64) (Identity, error)
	FindByUsername(ctx context.Context, username string) (Identity, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	Activate(ctx context.Context, id int64) (bool, error)
	SetRole(ctx context.Context, actorID, userID, groupID int64) error
	SetPassword(ctx context.Context, id int64, hash string) error
	UpdateProfile(ctx context.Context, id int64, input ProfileInput) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	List(ctx context.Context) ([]Identity, error)
	ListGroups(ctx context.Context) ([]GroupOption, error)
	Delete(ctx context.Context, actorID, id int64) error
}

// Duplicate reports a unique index conflict on username or email.
type Duplicate struct {
	Field string
}

func (d Duplicate) Error() string {
	return "users: duplicate " + d.Field
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool  *pgxpool.Pool
	audit *shared.AuditLogger
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool, audit *shared.AuditLogger) *PGRepository {
	return &PGRepository{pool: pool, audit: audit}
}

const identityColumns = `u.id, u.username, u.email, u.first_name, u.last_name, u.password_hash, u.is_active, u.last_login, u.date_joined,
	COALESCE(ARRAY(SELECT g.name FROM user_groups ug JOIN groups g ON g.id = ug.group_id WHERE ug.user_id = u.id ORDER BY g.id), '{}')`

func scanIdentity(row pgx.Row) (Identity, error) {
	var i Identity
	err := row.Scan(&i.ID, &i.Username, &i.Email, &i.FirstName, &i.LastName, &i.PasswordHash, &i.IsActive, &i.LastLogin, &i.DateJoined, &i.Groups)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, shared.ErrNotFound
		}
		return Identity{}, err
	}
	return i, nil
}

// Create inserts an inactive identity and attaches defaultGroup in the same
// transaction.
func (r *PGRepository) Create(ctx context.Context, identity Identity, defaultGroup string) (Identity, error) {
	var created Identity
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `INSERT INTO users (username, email, first_name, last_name, password_hash, is_active, date_joined)
			VALUES ($1, $2, $3, $4, $5, FALSE, $6) RETURNING id`,
			identity.Username, identity.Email, identity.FirstName, identity.LastName, identity.PasswordHash, time.Now().UTC()).Scan(&id)
		if err != nil {
			switch {
			case db.IsUniqueViolation(err, "uq_users_username"):
				return Duplicate{Field: "Username"}
			case db.IsUniqueViolation(err, "uq_users_email"):
				return Duplicate{Field: "Email"}
			}
			return fmt.Errorf("users: insert: %w", err)
		}
		if defaultGroup != "" {
			if _, err := tx.Exec(ctx, `INSERT INTO groups (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, defaultGroup); err != nil {
				return fmt.Errorf("users: ensure default group: %w", err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO user_groups (user_id, group_id) SELECT $1, id FROM groups WHERE name = $2`, id, defaultGroup); err != nil {
				return fmt.Errorf("users: assign default group: %w", err)
			}
		}
		created, err = scanIdentity(tx.QueryRow(ctx, `SELECT `+identityColumns+` FROM users u WHERE u.id = $1`, id))
		return err
	})
	if err != nil {
		return Identity{}, err
	}
	return created, nil
}

// Get fetches an identity by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (Identity, error) {
	return scanIdentity(r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM users u WHERE u.id = $1`, id))
}

// FindByUsername fetches an identity by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (Identity, error) {
	return scanIdentity(r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM users u WHERE u.username = $1`, username))
}

// UsernameTaken reports whether the username is in use.
func (r *PGRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// EmailTaken reports whether the email is used by an account other than exceptID.
func (r *PGRepository) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2)`, email, exceptID).Scan(&exists)
	return exists, err
}

// Activate flips is_active. It returns false when the account was already active.
func (r *PGRepository) Activate(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = TRUE WHERE id = $1 AND is_active = FALSE`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetRole replaces every membership of userID with groupID atomically.
func (r *PGRepository) SetRole(ctx context.Context, actorID, userID, groupID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		var groupName string
		if err := tx.QueryRow(ctx, `SELECT name FROM groups WHERE id = $1`, groupID).Scan(&groupName); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_groups WHERE user_id = $1`, userID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2)`, userID, groupID); err != nil {
			return err
		}
		return r.audit.Record(ctx, tx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "users.set_role",
			Entity:   "user",
			EntityID: strconv.FormatInt(userID, 10),
			Meta:     map[string]any{"group": groupName},
		})
	})
}

// SetPassword stores a new password hash.
func (r *PGRepository) SetPassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateProfile stores editable profile fields.
func (r *PGRepository) UpdateProfile(ctx context.Context, id int64, input ProfileInput) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET first_name = $2, last_name = $3, email = $4 WHERE id = $1`, id, input.FirstName, input.LastName, input.Email)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_users_email") {
			return Duplicate{Field: "Email"}
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// TouchLastLogin records a successful sign-in.
func (r *PGRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at.UTC())
	return err
}

// List returns every identity with its groups.
func (r *PGRepository) List(ctx context.Context) ([]Identity, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+identityColumns+` FROM users u ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var identities []Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	return identities, rows.Err()
}

// ListGroups returns assignable groups.
func (r *PGRepository) ListGroups(ctx context.Context) ([]GroupOption, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []GroupOption
	for rows.Next() {
		var g GroupOption
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Delete removes an identity. Reservations and memberships cascade through
// foreign keys in the same statement.
func (r *PGRepository) Delete(ctx context.Context, actorID, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return r.audit.Record(ctx, tx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "users.delete",
			Entity:   "user",
			EntityID: strconv.FormatInt(id, 10),
		})
	})
}

var _ Repository = (*PGRepository)(nil)
