package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/softdesk/support/pkg/storage"
)

// CreateUser inserts a user and fills in ID and CreatedTime
func (s *Store) CreateUser(ctx context.Context, user *storage.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, age, can_be_contacted, can_data_be_shared)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_time
	`
	err := s.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.Age,
		user.CanBeContacted, user.CanDataBeShared,
	).Scan(&user.ID, &user.CreatedTime)
	if isUniqueViolation(err) {
		return &storage.ConflictError{Resource: "user", Detail: "username already taken"}
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id
func (s *Store) GetUser(ctx context.Context, id int64) (*storage.User, error) {
	query := `
		SELECT id, username, email, password_hash, age, can_be_contacted, can_data_be_shared, created_time
		FROM users
		WHERE id = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id), fmt.Sprint(id))
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*storage.User, error) {
	query := `
		SELECT id, username, email, password_hash, age, can_be_contacted, can_data_be_shared, created_time
		FROM users
		WHERE username = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username), username)
}

func (s *Store) scanUser(row *sql.Row, id string) (*storage.User, error) {
	user := &storage.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Age, &user.CanBeContacted, &user.CanDataBeShared, &user.CreatedTime,
	)
	if err == sql.ErrNoRows {
		return nil, &storage.NotFoundError{Resource: "user", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns all users ordered by id
func (s *Store) ListUsers(ctx context.Context) ([]*storage.User, error) {
	query := `
		SELECT id, username, email, password_hash, age, can_be_contacted, can_data_be_shared, created_time
		FROM users
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*storage.User
	for rows.Next() {
		user := &storage.User{}
		if err := rows.Scan(
			&user.ID, &user.Username, &user.Email, &user.PasswordHash,
			&user.Age, &user.CanBeContacted, &user.CanDataBeShared, &user.CreatedTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// UpdateUser updates an existing user record
func (s *Store) UpdateUser(ctx context.Context, user *storage.User) error {
	query := `
		UPDATE users
		SET username = $1, email = $2, password_hash = $3, age = $4,
		    can_be_contacted = $5, can_data_be_shared = $6
		WHERE id = $7
	`
	result, err := s.db.ExecContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.Age,
		user.CanBeContacted, user.CanDataBeShared, user.ID,
	)
	if isUniqueViolation(err) {
		return &storage.ConflictError{Resource: "user", Detail: "username already taken"}
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.NewNotFound("user", user.ID)
	}
	return nil
}

// DeleteUser removes a user. Authored projects, issues, comments and
// contributor rows cascade via the schema; assigned issues are unassigned
// by the ON DELETE SET NULL on issues.assigned_to.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.NewNotFound("user", id)
	}
	return nil
}
