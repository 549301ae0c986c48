package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PrincipalLoader resolves the principal for a signed-in user.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID int64) (Principal, error)
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Service reads identities and group memberships for authorization.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// LoadPrincipal returns the principal for userID. Missing or inactive
// accounts yield Anonymous.
func (s *Service) LoadPrincipal(ctx context.Context, userID int64) (Principal, error) {
	var p Principal
	var active bool
	err := s.pool.QueryRow(ctx, `SELECT id, username, email, is_active FROM users WHERE id = $1`, userID).
		Scan(&p.UserID, &p.Username, &p.Email, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Anonymous, nil
		}
		return Anonymous, fmt.Errorf("rbac: load user: %w", err)
	}
	if !active {
		return Anonymous, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT g.name FROM user_groups ug JOIN groups g ON g.id = ug.group_id WHERE ug.user_id = $1 ORDER BY g.name`, userID)
	if err != nil {
		return Anonymous, fmt.Errorf("rbac: load groups: %w", err)
	}
	groups, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return Anonymous, fmt.Errorf("rbac: scan groups: %w", err)
	}
	p.Groups = groups
	p.Authenticated = true
	return p, nil
}

// EffectivePermissions returns deduplicated permission codenames granted to
// a user through its groups.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT p.codename
		FROM user_groups ug
		JOIN group_permissions gp ON gp.group_id = ug.group_id
		JOIN permissions p ON p.id = gp.permission_id
		WHERE ug.user_id = $1
		ORDER BY p.codename`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

var _ PrincipalLoader = (*Service)(nil)
