package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/token-gate/internal/domain"
)

// UserRepository defines persistence access for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, name, email, password_hash, role, is_email_verified, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user.Role == "" {
		user.Role = domain.RoleUser
	}

	const query = `
        INSERT INTO users (name, email, password_hash, role, is_email_verified)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.IsEmailVerified,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return storeError("create user", err)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, email=$2, password_hash=$3, role=$4, is_email_verified=$5, updated_at=NOW()
        WHERE id=$6`

	cmd, err := r.db.Exec(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.IsEmailVerified,
		user.ID,
	)
	if err != nil {
		return storeError("update user", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users WHERE id=$1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, storeError("get user", err)
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users WHERE email=$1`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, storeError("get user by email", err)
	}
	return user, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user domain.User
		role string
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.IsEmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user.Role = domain.Role(role)
	return &user, nil
}
