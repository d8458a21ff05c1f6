package store

import (
	"context"
	"fmt"

	"github.com/sadopc/timesheet/internal/model"
)

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	var role, createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, role, created_at, updated_at FROM users WHERE email = ?`,
		model.NormalizeEmail(email),
	).Scan(&u.ID, &u.Email, &u.DisplayName, &role, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", email, notFound(err))
	}
	u.Role = model.Role(role)
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return u, nil
}

// UpsertUser inserts a user keyed by email, or updates display name and role
// of the existing row. The stored ID is kept on update.
func (s *Store) UpsertUser(ctx context.Context, u model.User) (*model.User, error) {
	email := model.NormalizeEmail(u.Email)
	if email == "" {
		return nil, fmt.Errorf("upsert user: empty email")
	}
	role := u.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("upsert user: invalid role %q", role)
	}
	id := u.ID
	if id == "" {
		id = newID()
	}
	now := s.timestamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
		   display_name = excluded.display_name,
		   role = excluded.role,
		   updated_at = excluded.updated_at`,
		id, email, u.DisplayName, string(role), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", violation(err))
	}
	return s.GetUserByEmail(ctx, email)
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, display_name, role, created_at, updated_at FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		var role, createdAt, updatedAt string
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &role, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		u.Role = model.Role(role)
		u.CreatedAt = parseTime(createdAt)
		u.UpdatedAt = parseTime(updatedAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) GetAuthorizedEmail(ctx context.Context, email string) (*model.AuthorizedEmail, error) {
	a := &model.AuthorizedEmail{}
	var role, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, role, created_by, created_at FROM authorized_emails WHERE email = ?`,
		model.NormalizeEmail(email),
	).Scan(&a.ID, &a.Email, &role, &a.CreatedBy, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("get authorized email %q: %w", email, notFound(err))
	}
	a.Role = model.Role(role)
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}

func (s *Store) ListAuthorizedEmails(ctx context.Context) ([]model.AuthorizedEmail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, role, created_by, created_at FROM authorized_emails ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list authorized emails: %w", err)
	}
	defer rows.Close()

	var list []model.AuthorizedEmail
	for rows.Next() {
		var a model.AuthorizedEmail
		var role, createdAt string
		if err := rows.Scan(&a.ID, &a.Email, &role, &a.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		a.Role = model.Role(role)
		a.CreatedAt = parseTime(createdAt)
		list = append(list, a)
	}
	return list, rows.Err()
}

// AllowEmail adds or re-roles an allow-list entry. It is an operator action
// and is not part of the client-facing gateway.
func (s *Store) AllowEmail(ctx context.Context, email string, role model.Role, createdBy string) (*model.AuthorizedEmail, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("allow email: invalid role %q", role)
	}
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("allow email: empty email")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO authorized_emails (id, email, role, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET role = excluded.role`,
		newID(), email, string(role), createdBy, s.timestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("allow email: %w", violation(err))
	}
	return s.GetAuthorizedEmail(ctx, email)
}
