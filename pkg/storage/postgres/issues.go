package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/softdesk/support/pkg/storage"
)

// CreateIssue inserts an issue and fills in ID and CreatedTime
func (s *Store) CreateIssue(ctx context.Context, issue *storage.Issue) error {
	query := `
		INSERT INTO issues (name, description, priority, tag, status, project_id, author_id, assigned_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_time
	`
	err := s.db.QueryRowContext(ctx, query,
		issue.Name, issue.Description, issue.Priority, issue.Tag, issue.Status,
		issue.ProjectID, issue.AuthorID, issue.AssignedTo,
	).Scan(&issue.ID, &issue.CreatedTime)
	if err != nil {
		return fmt.Errorf("failed to create issue: %w", err)
	}
	return nil
}

// GetIssue retrieves an issue by id
func (s *Store) GetIssue(ctx context.Context, id int64) (*storage.Issue, error) {
	query := `
		SELECT id, name, description, priority, tag, status, project_id, author_id, assigned_to, created_time
		FROM issues
		WHERE id = $1
	`
	issue := &storage.Issue{}
	var assignedTo sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&issue.ID, &issue.Name, &issue.Description, &issue.Priority, &issue.Tag,
		&issue.Status, &issue.ProjectID, &issue.AuthorID, &assignedTo, &issue.CreatedTime,
	)
	if err == sql.ErrNoRows {
		return nil, storage.NewNotFound("issue", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}
	if assignedTo.Valid {
		issue.AssignedTo = &assignedTo.Int64
	}
	return issue, nil
}

// ListIssues returns a project's issues ordered by id
func (s *Store) ListIssues(ctx context.Context, projectID int64) ([]*storage.Issue, error) {
	query := `
		SELECT id, name, description, priority, tag, status, project_id, author_id, assigned_to, created_time
		FROM issues
		WHERE project_id = $1
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	var issues []*storage.Issue
	for rows.Next() {
		issue := &storage.Issue{}
		var assignedTo sql.NullInt64
		if err := rows.Scan(
			&issue.ID, &issue.Name, &issue.Description, &issue.Priority, &issue.Tag,
			&issue.Status, &issue.ProjectID, &issue.AuthorID, &assignedTo, &issue.CreatedTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		if assignedTo.Valid {
			issue.AssignedTo = &assignedTo.Int64
		}
		issues = append(issues, issue)
	}

	return issues, rows.Err()
}

// UpdateIssue updates the mutable fields of an issue
func (s *Store) UpdateIssue(ctx context.Context, issue *storage.Issue) error {
	query := `
		UPDATE issues
		SET name = $1, description = $2, priority = $3, tag = $4, status = $5, assigned_to = $6
		WHERE id = $7
	`
	result, err := s.db.ExecContext(ctx, query,
		issue.Name, issue.Description, issue.Priority, issue.Tag, issue.Status,
		issue.AssignedTo, issue.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update issue: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.NewNotFound("issue", issue.ID)
	}
	return nil
}

// DeleteIssue removes an issue; its comments cascade via the schema
func (s *Store) DeleteIssue(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM issues WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete issue: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.NewNotFound("issue", id)
	}
	return nil
}

// CreateComment inserts a comment, generating its UUID if unset
func (s *Store) CreateComment(ctx context.Context, comment *storage.Comment) error {
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	query := `
		INSERT INTO comments (id, description, issue_id, author_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_time
	`
	err := s.db.QueryRowContext(ctx, query,
		comment.ID, comment.Description, comment.IssueID, comment.AuthorID,
	).Scan(&comment.CreatedTime)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// GetComment retrieves a comment by uuid
func (s *Store) GetComment(ctx context.Context, id uuid.UUID) (*storage.Comment, error) {
	query := `
		SELECT id, description, issue_id, author_id, created_time
		FROM comments
		WHERE id = $1
	`
	comment := &storage.Comment{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&comment.ID, &comment.Description, &comment.IssueID, &comment.AuthorID, &comment.CreatedTime,
	)
	if err == sql.ErrNoRows {
		return nil, storage.NewNotFound("comment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return comment, nil
}

// ListComments returns an issue's comments ordered by creation time
func (s *Store) ListComments(ctx context.Context, issueID int64) ([]*storage.Comment, error) {
	query := `
		SELECT id, description, issue_id, author_id, created_time
		FROM comments
		WHERE issue_id = $1
		ORDER BY created_time ASC
	`
	rows, err := s.db.QueryContext(ctx, query, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*storage.Comment
	for rows.Next() {
		comment := &storage.Comment{}
		if err := rows.Scan(
			&comment.ID, &comment.Description, &comment.IssueID, &comment.AuthorID, &comment.CreatedTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, comment)
	}

	return comments, rows.Err()
}

// UpdateComment updates a comment's description
func (s *Store) UpdateComment(ctx context.Context, comment *storage.Comment) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE comments SET description = $1 WHERE id = $2`,
		comment.Description, comment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.NewNotFound("comment", comment.ID)
	}
	return nil
}

// DeleteComment removes a comment
func (s *Store) DeleteComment(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.NewNotFound("comment", id)
	}
	return nil
}
