package roles

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/eventhub/internal/platform/db"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

// ErrDuplicateName is returned when a group name is already taken.
var ErrDuplicateName = errors.New("roles: group name already exists")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool  *pgxpool.Pool
	audit *shared.AuditLogger
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, audit *shared.AuditLogger) *Repository {
	return &Repository{pool: pool, audit: audit}
}

// ListGroups returns every group with member counts and permissions.
func (r *Repository) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT g.id, g.name,
		(SELECT COUNT(*) FROM user_groups ug WHERE ug.group_id = g.id)
		FROM groups g ORDER BY g.id`)
	if err != nil {
		return nil, err
	}
	var groups []Group
	index := make(map[int64]int)
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Members); err != nil {
			rows.Close()
			return nil, err
		}
		index[g.ID] = len(groups)
		groups = append(groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	permRows, err := r.pool.Query(ctx, `SELECT gp.group_id, p.id, p.codename, p.description
		FROM group_permissions gp JOIN permissions p ON p.id = gp.permission_id
		ORDER BY gp.group_id, p.codename`)
	if err != nil {
		return nil, err
	}
	defer permRows.Close()
	for permRows.Next() {
		var groupID int64
		var p Permission
		if err := permRows.Scan(&groupID, &p.ID, &p.Codename, &p.Description); err != nil {
			return nil, err
		}
		if i, ok := index[groupID]; ok {
			groups[i].Permissions = append(groups[i].Permissions, p)
		}
	}
	return groups, permRows.Err()
}

// GetGroup fetches a single group without its permissions.
func (r *Repository) GetGroup(ctx context.Context, id int64) (Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM groups WHERE id = $1`, id).Scan(&g.ID, &g.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, shared.ErrNotFound
	}
	return g, err
}

// ListPermissions returns every permission.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, codename, description FROM permissions ORDER BY codename`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Permission])
}

// CreateGroup inserts a group together with its permission grants.
func (r *Repository) CreateGroup(ctx context.Context, actorID int64, name string, permissionIDs []int64) (Group, error) {
	var created Group
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO groups (name) VALUES ($1) RETURNING id, name`, name).Scan(&created.ID, &created.Name); err != nil {
			if db.IsUniqueViolation(err, "uq_groups_name") {
				return ErrDuplicateName
			}
			return err
		}
		if len(permissionIDs) > 0 {
			tag, err := tx.Exec(ctx, `INSERT INTO group_permissions (group_id, permission_id)
				SELECT $1, p.id FROM permissions p WHERE p.id = ANY($2)`, created.ID, permissionIDs)
			if err != nil {
				return err
			}
			if int(tag.RowsAffected()) != len(uniqueIDs(permissionIDs)) {
				return shared.ValidationErrors{"PermissionIDs": "Select a valid choice."}
			}
		}
		return r.audit.Record(ctx, tx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "groups.create",
			Entity:   "group",
			EntityID: strconv.FormatInt(created.ID, 10),
			Meta:     map[string]any{"name": name, "permissions": permissionIDs},
		})
	})
	if err != nil {
		return Group{}, err
	}
	return created, nil
}

// DeleteGroup removes a group; memberships and grants cascade.
func (r *Repository) DeleteGroup(ctx context.Context, actorID, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return r.audit.Record(ctx, tx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "groups.delete",
			Entity:   "group",
			EntityID: strconv.FormatInt(id, 10),
		})
	})
}

func uniqueIDs(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

var _ RepositoryPort = (*Repository)(nil)
