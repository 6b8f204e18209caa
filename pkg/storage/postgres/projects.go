package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/softdesk/support/pkg/storage"
)

// CreateProject inserts the project and the author's contributor row in one
// transaction. A reader must never observe a project without its author's
// membership.
func (s *Store) CreateProject(ctx context.Context, project *storage.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO projects (name, description, type, author_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_time
	`
	err = tx.QueryRowContext(ctx, query,
		project.Name, project.Description, project.Type, project.AuthorID,
	).Scan(&project.ID, &project.CreatedTime)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO contributors (user_id, project_id, created_time) VALUES ($1, $2, $3)`,
		project.AuthorID, project.ID, project.CreatedTime,
	)
	if err != nil {
		return fmt.Errorf("failed to add author as contributor: %w", err)
	}

	return tx.Commit()
}

// GetProject retrieves a project by id
func (s *Store) GetProject(ctx context.Context, id int64) (*storage.Project, error) {
	query := `
		SELECT id, name, description, type, author_id, created_time
		FROM projects
		WHERE id = $1
	`
	project := &storage.Project{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.Name, &project.Description, &project.Type,
		&project.AuthorID, &project.CreatedTime,
	)
	if err == sql.ErrNoRows {
		return nil, storage.NewNotFound("project", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// ListProjectsForUser returns the projects a user contributes to
func (s *Store) ListProjectsForUser(ctx context.Context, userID int64) ([]*storage.Project, error) {
	query := `
		SELECT DISTINCT p.id, p.name, p.description, p.type, p.author_id, p.created_time
		FROM projects p
		JOIN contributors c ON p.id = c.project_id
		WHERE c.user_id = $1
		ORDER BY p.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*storage.Project
	for rows.Next() {
		project := &storage.Project{}
		if err := rows.Scan(
			&project.ID, &project.Name, &project.Description, &project.Type,
			&project.AuthorID, &project.CreatedTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// UpdateProject updates name, description and type; author is immutable
func (s *Store) UpdateProject(ctx context.Context, project *storage.Project) error {
	query := `UPDATE projects SET name = $1, description = $2, type = $3 WHERE id = $4`
	result, err := s.db.ExecContext(ctx, query,
		project.Name, project.Description, project.Type, project.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.NewNotFound("project", project.ID)
	}
	return nil
}

// DeleteProject removes a project; contributors, issues and their comments
// cascade via the schema
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.NewNotFound("project", id)
	}
	return nil
}

// AddContributor inserts a membership row. The UNIQUE(user_id, project_id)
// constraint is the authority for duplicates: a concurrent add for the same
// pair leaves exactly one winner, the rest get ConflictError.
func (s *Store) AddContributor(ctx context.Context, c *storage.Contributor) error {
	query := `
		INSERT INTO contributors (user_id, project_id)
		VALUES ($1, $2)
		RETURNING id, created_time
	`
	err := s.db.QueryRowContext(ctx, query, c.UserID, c.ProjectID).
		Scan(&c.ID, &c.CreatedTime)
	if isUniqueViolation(err) {
		return &storage.ConflictError{Resource: "contributor", Detail: "user is already a contributor of this project"}
	}
	if err != nil {
		return fmt.Errorf("failed to add contributor: %w", err)
	}
	return nil
}

// GetContributor retrieves the membership row for (project, user)
func (s *Store) GetContributor(ctx context.Context, projectID, userID int64) (*storage.Contributor, error) {
	query := `
		SELECT id, user_id, project_id, created_time
		FROM contributors
		WHERE project_id = $1 AND user_id = $2
	`
	c := &storage.Contributor{}
	err := s.db.QueryRowContext(ctx, query, projectID, userID).Scan(
		&c.ID, &c.UserID, &c.ProjectID, &c.CreatedTime,
	)
	if err == sql.ErrNoRows {
		return nil, storage.NewNotFound("contributor", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contributor: %w", err)
	}
	return c, nil
}

// ListContributors returns the membership rows of a project
func (s *Store) ListContributors(ctx context.Context, projectID int64) ([]*storage.Contributor, error) {
	query := `
		SELECT id, user_id, project_id, created_time
		FROM contributors
		WHERE project_id = $1
		ORDER BY created_time ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributors: %w", err)
	}
	defer rows.Close()

	var contributors []*storage.Contributor
	for rows.Next() {
		c := &storage.Contributor{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.ProjectID, &c.CreatedTime); err != nil {
			return nil, fmt.Errorf("failed to scan contributor: %w", err)
		}
		contributors = append(contributors, c)
	}

	return contributors, rows.Err()
}

// RemoveContributor deletes the membership row for (project, user)
func (s *Store) RemoveContributor(ctx context.Context, projectID, userID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM contributors WHERE project_id = $1 AND user_id = $2`,
		projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove contributor: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.NewNotFound("contributor", userID)
	}
	return nil
}

// IsContributor reports whether a membership row exists for (user, project)
func (s *Store) IsContributor(ctx context.Context, userID, projectID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM contributors WHERE user_id = $1 AND project_id = $2)`,
		userID, projectID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check contributor: %w", err)
	}
	return exists, nil
}
