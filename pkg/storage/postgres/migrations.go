package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(150) NOT NULL UNIQUE,
					email VARCHAR(254) NOT NULL DEFAULT '',
					password_hash VARCHAR(255) NOT NULL,
					age INTEGER NOT NULL CHECK (age >= 15),
					can_be_contacted BOOLEAN NOT NULL DEFAULT FALSE,
					can_data_be_shared BOOLEAN NOT NULL DEFAULT FALSE,
					created_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
			`,
		},
		{
			Version:     2,
			Description: "Create projects table",
			SQL: `
				CREATE TABLE IF NOT EXISTS projects (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(200) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					type VARCHAR(20) NOT NULL,
					author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					created_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_projects_author_id ON projects(author_id);
			`,
		},
		{
			Version:     3,
			Description: "Create contributors table",
			SQL: `
				CREATE TABLE IF NOT EXISTS contributors (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					created_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, project_id)
				);

				CREATE INDEX IF NOT EXISTS idx_contributors_user_id ON contributors(user_id);
				CREATE INDEX IF NOT EXISTS idx_contributors_project_id ON contributors(project_id);
			`,
		},
		{
			Version:     4,
			Description: "Create issues table",
			SQL: `
				CREATE TABLE IF NOT EXISTS issues (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(200) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					priority VARCHAR(10) NOT NULL DEFAULT 'LOW',
					tag VARCHAR(10) NOT NULL,
					status VARCHAR(15) NOT NULL DEFAULT 'To Do',
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					assigned_to BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_issues_project_id ON issues(project_id);
				CREATE INDEX IF NOT EXISTS idx_issues_author_id ON issues(author_id);
				CREATE INDEX IF NOT EXISTS idx_issues_assigned_to ON issues(assigned_to);
			`,
		},
		{
			Version:     5,
			Description: "Create comments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS comments (
					id UUID PRIMARY KEY,
					description TEXT NOT NULL,
					issue_id BIGINT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
					author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					created_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_comments_issue_id ON comments(issue_id);
			`,
		},
		{
			Version:     6,
			Description: "Create refresh_tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS refresh_tokens (
					id BIGSERIAL PRIMARY KEY,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					expires_at TIMESTAMPTZ NOT NULL,
					revoked_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);
				CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expires_at ON refresh_tokens(expires_at);
			`,
		},
		{
			Version:     7,
			Description: "Create audit_entries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_entries (
					id BIGSERIAL PRIMARY KEY,
					actor_id BIGINT NOT NULL,
					action VARCHAR(50) NOT NULL,
					resource VARCHAR(20) NOT NULL,
					resource_id VARCHAR(64) NOT NULL DEFAULT '',
					project_id BIGINT,
					allowed BOOLEAN NOT NULL,
					reason TEXT NOT NULL DEFAULT '',
					request_id VARCHAR(64) NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_audit_entries_actor_id ON audit_entries(actor_id);
				CREATE INDEX IF NOT EXISTS idx_audit_entries_project_id ON audit_entries(project_id);
			`,
		},
	}
}

// RunMigrations applies all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	createTable := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, migration := range GetMigrations() {
		var applied bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`,
			migration.Version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", migration.Version, err)
		}
		if applied {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
