package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"civicconnect.org/internal/auth"
	"civicconnect.org/internal/ids"
)

var _ auth.Store = (*Store)(nil)

func (s *Store) CreateUser(ctx context.Context, u auth.User) (*auth.User, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	var out auth.User
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, email, password_hash, provider)
		values ($1, lower($2), $3, $4)
		returning id, email, password_hash, provider, created_at, updated_at
	`, u.ID, strings.TrimSpace(u.Email), u.PasswordHash, u.Provider)
	if err := row.Scan(&out.ID, &out.Email, &out.PasswordHash, &out.Provider, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return nil, auth.ErrConflict
		}
		return nil, err
	}
	return &out, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.userWhere(ctx, `lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (s *Store) UserByID(ctx context.Context, id string) (*auth.User, error) {
	return s.userWhere(ctx, `id = $1`, id)
}

func (s *Store) userWhere(ctx context.Context, cond string, arg any) (*auth.User, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	var u auth.User
	err := s.db.QueryRowContext(ctx, `
		select id, email, password_hash, provider, created_at, updated_at
		from users where `+cond, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Provider, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p auth.Profile) (*auth.Profile, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	var out auth.Profile
	err := s.db.QueryRowContext(ctx, `
		insert into profiles (user_id, display_name, avatar_url)
		values ($1, $2, $3)
		on conflict (user_id) do update set
			display_name = coalesce(nullif(excluded.display_name, ''), profiles.display_name),
			avatar_url = coalesce(nullif(excluded.avatar_url, ''), profiles.avatar_url),
			updated_at = now()
		returning user_id, display_name, avatar_url, created_at, updated_at
	`, p.UserID, strings.TrimSpace(p.DisplayName), strings.TrimSpace(p.AvatarURL)).
		Scan(&out.UserID, &out.DisplayName, &out.AvatarURL, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (s *Store) ProfileByUserID(ctx context.Context, userID string) (*auth.Profile, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	var p auth.Profile
	err := s.db.QueryRowContext(ctx, `
		select user_id, display_name, avatar_url, created_at, updated_at
		from profiles where user_id = $1
	`, userID).Scan(&p.UserID, &p.DisplayName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) RoleFor(ctx context.Context, userID string) (auth.Role, error) {
	if s.db == nil {
		return "", errNoDB
	}
	var role string
	err := s.db.QueryRowContext(ctx, `select role from user_roles where user_id = $1`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", auth.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return auth.Role(role), nil
}

func (s *Store) AssignRole(ctx context.Context, userID string, role auth.Role) error {
	if s.db == nil {
		return errNoDB
	}
	if !role.Valid() {
		return auth.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		insert into user_roles (user_id, role)
		values ($1, $2)
		on conflict (user_id) do update set role = excluded.role
	`, userID, string(role))
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return auth.ErrNotFound
	}
	return err
}

func (s *Store) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if s.db == nil {
		return errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `delete from revoked_tokens where expires_at < $1`, s.now().UTC()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into revoked_tokens (token_id, expires_at)
		values ($1, $2)
		on conflict (token_id) do nothing
	`, tokenID, expiresAt.UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s.db == nil {
		return false, errNoDB
	}
	var revoked bool
	err := s.db.QueryRowContext(ctx, `select exists(select 1 from revoked_tokens where token_id = $1)`, tokenID).Scan(&revoked)
	return revoked, err
}
