package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bryan-buckman/sftu/internal/model"
)

// UpsertUser inserts a user or updates the existing row with the same email.
// On return u.ID and u.CreatedAt hold the stored values.
func (db *DB) UpsertUser(ctx context.Context, u *model.User) error {
	if u.Email == "" {
		return fmt.Errorf("upsert user: email is required")
	}
	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	verified := 0
	if u.EmailVerified {
		verified = 1
	}

	var id, createdAt string
	err := db.queryRow(ctx, `
		INSERT INTO "user" (id, name, email, emailVerified, image, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			name = excluded.name,
			emailVerified = excluded.emailVerified,
			image = excluded.image,
			updatedAt = excluded.updatedAt
		RETURNING id, createdAt`,
		u.ID, u.Name, u.Email, verified, nullString(u.Image), formatTime(u.CreatedAt), formatTime(now),
	).Scan(&id, &createdAt)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.Email, err)
	}
	u.ID = id
	u.CreatedAt = parseTime(createdAt)
	return nil
}

// GetUser returns a user by id.
func (db *DB) GetUser(ctx context.Context, id string) (*model.User, error) {
	row := db.queryRow(ctx, `
		SELECT id, name, email, emailVerified, COALESCE(image, ''), createdAt, updatedAt
		FROM "user" WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*model.User, error) {
	var (
		u                    model.User
		verified             int
		createdAt, updatedAt string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &verified, &u.Image, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.EmailVerified = verified != 0
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

// LinkAccount stores provider credentials for a user, replacing any previous
// link for the same provider account.
func (db *DB) LinkAccount(ctx context.Context, a *model.Account) error {
	now := formatTime(time.Now())
	t, err := db.begin(ctx)
	if err != nil {
		return err
	}
	defer t.Rollback()

	var id string
	err = t.queryRow(ctx, "SELECT id FROM account WHERE providerId = ? AND accountId = ?", a.ProviderID, a.AccountID).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		_, err = t.exec(ctx, `
			INSERT INTO account (id, accountId, providerId, userId, accessToken, refreshToken, scope, createdAt, updatedAt)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.AccountID, a.ProviderID, a.UserID,
			nullString(a.AccessToken), nullString(a.RefreshToken), nullString(a.Scope), now, now)
	case err == nil:
		a.ID = id
		_, err = t.exec(ctx, `
			UPDATE account SET userId = ?, accessToken = ?, refreshToken = COALESCE(?, refreshToken), scope = ?, updatedAt = ?
			WHERE id = ?`,
			a.UserID, nullString(a.AccessToken), nullString(a.RefreshToken), nullString(a.Scope), now, id)
	}
	if err != nil {
		return fmt.Errorf("link %s account: %w", a.ProviderID, err)
	}
	return t.Commit()
}

// CreateSession stores a new session. ID and Token are generated when empty.
func (db *DB) CreateSession(ctx context.Context, s *model.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Token == "" {
		s.Token = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := db.exec(ctx, `
		INSERT INTO session (id, expiresAt, token, createdAt, updatedAt, ipAddress, userAgent, userId)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, formatTime(s.ExpiresAt), s.Token, formatTime(s.CreatedAt), formatTime(s.CreatedAt),
		nullString(s.IPAddress), nullString(s.UserAgent), s.UserID)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns the session with the given token and its user.
// Expired sessions are returned as-is; callers decide what expiry means.
func (db *DB) GetSession(ctx context.Context, token string) (*model.Session, *model.User, error) {
	var (
		s                    model.Session
		u                    model.User
		expiresAt, createdAt string
		verified             int
		userCreated, userUpd string
	)
	err := db.queryRow(ctx, `
		SELECT s.id, s.token, s.userId, s.expiresAt, COALESCE(s.ipAddress, ''), COALESCE(s.userAgent, ''), s.createdAt,
			u.id, u.name, u.email, u.emailVerified, COALESCE(u.image, ''), u.createdAt, u.updatedAt
		FROM session s
		JOIN "user" u ON u.id = s.userId
		WHERE s.token = ?`, token,
	).Scan(&s.ID, &s.Token, &s.UserID, &expiresAt, &s.IPAddress, &s.UserAgent, &createdAt,
		&u.ID, &u.Name, &u.Email, &verified, &u.Image, &userCreated, &userUpd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	s.ExpiresAt = parseTime(expiresAt)
	s.CreatedAt = parseTime(createdAt)
	u.EmailVerified = verified != 0
	u.CreatedAt = parseTime(userCreated)
	u.UpdatedAt = parseTime(userUpd)
	return &s, &u, nil
}

// DeleteSession removes a session by token. Unknown tokens are not an error.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	_, err := db.exec(ctx, "DELETE FROM session WHERE token = ?", token)
	return err
}

// DeleteExpiredSessions removes sessions that expired at or before now.
func (db *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.exec(ctx, "DELETE FROM session WHERE expiresAt <= ?", formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
