package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

var ErrEmailExists = errors.New("email already registered")

func (s *Store) CreateUser(ctx context.Context, email, fullName, hashedPassword string) (User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, full_name, hashed_password)
		VALUES ($1, $2, $3)
		RETURNING id, email, full_name, hashed_password, is_active, created_at, updated_at`,
		email, fullName, hashedPassword)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrEmailExists
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, full_name, hashed_password, is_active, created_at, updated_at
		FROM users WHERE email = $1`, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (User, error) {
	pgID, err := parseUUID(userID)
	if err != nil {
		return User{}, err
	}

	row := s.pool.QueryRow(ctx, `
		SELECT id, email, full_name, hashed_password, is_active, created_at, updated_at
		FROM users WHERE id = $1`, pgID)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id                   pgtype.UUID
		createdAt, updatedAt pgtype.Timestamptz
		u                    User
	)
	if err := row.Scan(&id, &u.Email, &u.FullName, &u.HashedPassword, &u.IsActive, &createdAt, &updatedAt); err != nil {
		return User{}, err
	}
	u.ID = uuidToString(id.Bytes)
	u.CreatedAt = createdAt.Time.UTC()
	u.UpdatedAt = updatedAt.Time.UTC()
	return u, nil
}
