package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/garyjia/tripflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the user and its role set
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	exec := conn(ctx, r.db)

	result, err := exec.ExecContext(ctx,
		`INSERT INTO users (name, email, created_at) VALUES (?, ?, ?)`,
		user.Name, user.Email, user.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("email", user.Email), zap.Error(err))
		return sqlite.TranslateError("users", fmt.Errorf("failed to create user: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id

	for _, role := range user.Roles {
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role) VALUES (?, ?)`, user.ID, string(role),
		); err != nil {
			r.logger.Error("Failed to add user role",
				zap.Int64("user_id", user.ID),
				zap.String("role", string(role)),
				zap.Error(err))
			return sqlite.TranslateError("user_roles", fmt.Errorf("failed to add role %s: %w", role, err))
		}
	}

	return nil
}

// GetByID retrieves a user with its roles
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	exec := conn(ctx, r.db)

	var user entity.User
	err := exec.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "user", id)
	}

	rows, err := exec.QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = ? ORDER BY role`, id)
	if err != nil {
		r.logger.Error("Failed to load user roles", zap.Int64("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		user.Roles = append(user.Roles, entity.Role(role))
	}

	return &user, rows.Err()
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)
