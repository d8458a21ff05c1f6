package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sadopc/timesheet/internal/model"
)

// ErrTokenInvalid is returned when a link token is unknown, used or expired.
var ErrTokenInvalid = errors.New("link token is invalid or expired")

// CreateLinkToken records a single-use sign-in token for email.
func (s *Store) CreateLinkToken(ctx context.Context, token, email string, ttl time.Duration) error {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO link_tokens (token, email, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		token, model.NormalizeEmail(email), now.Add(ttl).Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("create link token: %w", err)
	}
	return nil
}

// ConsumeLinkToken marks the token used and returns its email. A token can
// only be consumed once.
func (s *Store) ConsumeLinkToken(ctx context.Context, token string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("consume link token: %w", err)
	}
	defer tx.Rollback()

	var email, expiresAt string
	var used int
	err = tx.QueryRowContext(ctx,
		`SELECT email, expires_at, used FROM link_tokens WHERE token = ?`, token,
	).Scan(&email, &expiresAt, &used)
	if err == sql.ErrNoRows {
		return "", ErrTokenInvalid
	}
	if err != nil {
		return "", fmt.Errorf("consume link token: %w", err)
	}
	if used == 1 || !s.now().UTC().Before(parseTime(expiresAt)) {
		return "", ErrTokenInvalid
	}
	if _, err := tx.ExecContext(ctx, `UPDATE link_tokens SET used = 1 WHERE token = ?`, token); err != nil {
		return "", fmt.Errorf("consume link token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("consume link token: %w", err)
	}
	return email, nil
}

func (s *Store) CreateSession(ctx context.Context, email string, ttl time.Duration) (*model.Session, error) {
	now := s.now().UTC()
	sess := &model.Session{
		ID:        newID(),
		Email:     model.NormalizeEmail(email),
		CreatedAt: now.Truncate(time.Second),
		ExpiresAt: now.Add(ttl).Truncate(time.Second),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, email, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Email, sess.CreatedAt.Format(time.RFC3339), sess.ExpiresAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// GetSession returns a live session. Expired sessions are reported as not
// found.
func (s *Store) GetSession(ctx context.Context, id string) (*model.Session, error) {
	sess := &model.Session{}
	var createdAt, expiresAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, created_at, expires_at FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Email, &createdAt, &expiresAt)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", notFound(err))
	}
	sess.CreatedAt = parseTime(createdAt)
	sess.ExpiresAt = parseTime(expiresAt)
	if !s.now().UTC().Before(sess.ExpiresAt) {
		return nil, fmt.Errorf("get session: %w", notFound(sql.ErrNoRows))
	}
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
