// Package auth issues and verifies the credentials the API runs on: short
// lived JWT access tokens plus opaque refresh tokens stored hashed server
// side so a database leak exposes nothing replayable.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/softdesk/support/pkg/storage"
)

// ErrInvalidToken is returned for tokens that are expired, malformed,
// revoked, or signed with the wrong key.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the access token payload
type Claims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// TokenPair is what a successful login or refresh returns
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenManager signs access tokens and manages refresh token rotation
type TokenManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      RefreshTokenStore
}

// NewTokenManager creates a token manager
func NewTokenManager(secret []byte, issuer string, accessTTL, refreshTTL time.Duration, store RefreshTokenStore) (*TokenManager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("signing secret must be at least 32 bytes, got %d", len(secret))
	}
	return &TokenManager{
		secret:     secret,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
	}, nil
}

// Issue returns a fresh token pair for an authenticated user
func (m *TokenManager) Issue(ctx context.Context, user *storage.User) (*TokenPair, error) {
	now := time.Now().UTC()

	access, err := m.signAccessToken(user.ID, now)
	if err != nil {
		return nil, err
	}

	refresh, err := m.issueRefreshToken(ctx, user.ID, now)
	if err != nil {
		return nil, err
	}

	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair issued. A token that is unknown, expired, or already revoked yields
// ErrInvalidToken without revealing which.
func (m *TokenManager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, int64, error) {
	record, err := m.store.Lookup(ctx, HashToken(refreshToken))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, 0, ErrInvalidToken
		}
		return nil, 0, err
	}

	now := time.Now().UTC()
	if record.RevokedAt != nil || now.After(record.ExpiresAt) {
		return nil, 0, ErrInvalidToken
	}

	if err := m.store.Revoke(ctx, record.TokenHash); err != nil {
		return nil, 0, err
	}

	access, err := m.signAccessToken(record.UserID, now)
	if err != nil {
		return nil, 0, err
	}
	refresh, err := m.issueRefreshToken(ctx, record.UserID, now)
	if err != nil {
		return nil, 0, err
	}

	return &TokenPair{Access: access, Refresh: refresh}, record.UserID, nil
}

// Revoke invalidates one refresh token and returns the id of the user who
// held it. Revoking an unknown token is not an error; the returned id is 0.
func (m *TokenManager) Revoke(ctx context.Context, refreshToken string) (int64, error) {
	record, err := m.store.Lookup(ctx, HashToken(refreshToken))
	if storage.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if err := m.store.Revoke(ctx, record.TokenHash); err != nil && !storage.IsNotFound(err) {
		return 0, err
	}
	return record.UserID, nil
}

// RevokeAllForUser invalidates every refresh token a user holds
func (m *TokenManager) RevokeAllForUser(ctx context.Context, userID int64) error {
	return m.store.RevokeAllForUser(ctx, userID)
}

func (m *TokenManager) issueRefreshToken(ctx context.Context, userID int64, now time.Time) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	token := hex.EncodeToString(raw)

	record := &RefreshToken{
		TokenHash: HashToken(token),
		UserID:    userID,
		ExpiresAt: now.Add(m.refreshTTL),
	}
	if err := m.store.Save(ctx, record); err != nil {
		return "", err
	}
	return token, nil
}

// HashToken returns the hex SHA-256 digest under which a refresh token is
// stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// signAccessToken issues an HS256 access token for the user
func (m *TokenManager) signAccessToken(userID int64, now time.Time) (string, error) {
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken parses an access token and returns the user id it was
// issued for.
func (m *TokenManager) VerifyAccessToken(tokenStr string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return 0, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}
