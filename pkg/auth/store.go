package auth

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/softdesk/support/pkg/storage"
)

// RefreshToken is one stored refresh token record. Only the hash of the
// token ever touches storage.
type RefreshToken struct {
	ID        int64
	TokenHash string
	UserID    int64
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// RefreshTokenStore persists refresh tokens
type RefreshTokenStore interface {
	Save(ctx context.Context, token *RefreshToken) error
	Lookup(ctx context.Context, tokenHash string) (*RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
	// DeleteExpired removes tokens past their expiry and returns how many
	// were dropped. Run periodically.
	DeleteExpired(ctx context.Context) (int64, error)
}

// PostgresTokenStore is the production refresh token store
type PostgresTokenStore struct {
	db *sql.DB
}

// NewPostgresTokenStore creates a database-backed token store
func NewPostgresTokenStore(db *sql.DB) *PostgresTokenStore {
	return &PostgresTokenStore{db: db}
}

// Save inserts a refresh token record
func (s *PostgresTokenStore) Save(ctx context.Context, token *RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query, token.TokenHash, token.UserID, token.ExpiresAt).
		Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// Lookup finds a refresh token by hash
func (s *PostgresTokenStore) Lookup(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	query := `
		SELECT id, token_hash, user_id, expires_at, revoked_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	token := &RefreshToken{}
	var revokedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID, &token.TokenHash, &token.UserID, &token.ExpiresAt, &revokedAt, &token.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.NewNotFound("refresh token", tokenHash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if revokedAt.Valid {
		token.RevokedAt = &revokedAt.Time
	}
	return token, nil
}

// Revoke marks a refresh token revoked
func (s *PostgresTokenStore) Revoke(ctx context.Context, tokenHash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW() WHERE token_hash = $1 AND revoked_at IS NULL`,
		tokenHash,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check revocation result: %w", err)
	}
	if rows == 0 {
		return storage.NewNotFound("refresh token", tokenHash)
	}
	return nil
}

// RevokeAllForUser marks all of a user's refresh tokens revoked
func (s *PostgresTokenStore) RevokeAllForUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens for user %d: %w", userID, err)
	}
	return nil
}

// DeleteExpired removes refresh tokens past their expiry
func (s *PostgresTokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted refresh tokens: %w", err)
	}
	return rows, nil
}

// MemoryTokenStore keeps refresh tokens in memory. Used in tests and with
// the in-memory storage backend.
type MemoryTokenStore struct {
	mu     sync.Mutex
	nextID int64
	tokens map[string]*RefreshToken
}

// NewMemoryTokenStore creates an in-memory token store
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]*RefreshToken)}
}

func (s *MemoryTokenStore) Save(ctx context.Context, token *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	token.ID = s.nextID
	token.CreatedAt = time.Now().UTC()
	cp := *token
	s.tokens[token.TokenHash] = &cp
	return nil
}

func (s *MemoryTokenStore) Lookup(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[tokenHash]
	if !ok {
		return nil, storage.NewNotFound("refresh token", tokenHash)
	}
	cp := *token
	return &cp, nil
}

func (s *MemoryTokenStore) Revoke(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[tokenHash]
	if !ok || token.RevokedAt != nil {
		return storage.NewNotFound("refresh token", tokenHash)
	}
	now := time.Now().UTC()
	token.RevokedAt = &now
	return nil
}

func (s *MemoryTokenStore) RevokeAllForUser(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, token := range s.tokens {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &now
		}
	}
	return nil
}

func (s *MemoryTokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var dropped int64
	for hash, token := range s.tokens {
		if now.After(token.ExpiresAt) {
			delete(s.tokens, hash)
			dropped++
		}
	}
	return dropped, nil
}
