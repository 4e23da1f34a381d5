package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/token-gate/internal/domain"
)

const tokenColumns = `id, token, subject, type, issued_at, expires_at`

type postgresTokenStore struct {
	db DBTX
}

// NewPostgresTokenStore returns a Postgres-backed TokenStore.
func NewPostgresTokenStore(db DBTX) TokenStore {
	return &postgresTokenStore{db: db}
}

func (s *postgresTokenStore) Save(ctx context.Context, record *domain.TokenRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	const query = `
        INSERT INTO tokens (id, token, subject, type, issued_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.Exec(ctx, query,
		record.ID,
		record.Token,
		record.Subject,
		string(record.Type),
		record.IssuedAt,
		record.ExpiresAt,
	)
	return storeError("save token", err)
}

func (s *postgresTokenStore) FindOne(ctx context.Context, token string, tokenType domain.TokenType, subject string) (*domain.TokenRecord, error) {
	const query = `
        SELECT ` + tokenColumns + `
        FROM tokens
        WHERE token=$1 AND type=$2 AND subject=$3 AND expires_at > NOW()`

	record, err := scanToken(s.db.QueryRow(ctx, query, token, string(tokenType), subject))
	if err != nil {
		return nil, storeError("find token", err)
	}
	return record, nil
}

// Consume relies on DELETE ... RETURNING: a concurrent delete of the same row
// blocks on the row lock and then matches nothing.
func (s *postgresTokenStore) Consume(ctx context.Context, token string, tokenType domain.TokenType, subject string) (*domain.TokenRecord, error) {
	const query = `
        DELETE FROM tokens
        WHERE token=$1 AND type=$2 AND subject=$3 AND expires_at > NOW()
        RETURNING ` + tokenColumns

	record, err := scanToken(s.db.QueryRow(ctx, query, token, string(tokenType), subject))
	if err != nil {
		return nil, storeError("consume token", err)
	}
	return record, nil
}

func (s *postgresTokenStore) DeleteOne(ctx context.Context, record *domain.TokenRecord) error {
	if record == nil {
		return nil
	}
	const query = `
        DELETE FROM tokens
        WHERE token=$1 AND type=$2 AND subject=$3`
	_, err := s.db.Exec(ctx, query, record.Token, string(record.Type), record.Subject)
	return storeError("delete token", err)
}

func (s *postgresTokenStore) DeleteMany(ctx context.Context, subject string, tokenType domain.TokenType) (int64, error) {
	const query = `DELETE FROM tokens WHERE subject=$1 AND type=$2`
	cmd, err := s.db.Exec(ctx, query, subject, string(tokenType))
	if err != nil {
		return 0, storeError("delete tokens", err)
	}
	return cmd.RowsAffected(), nil
}

func (s *postgresTokenStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM tokens WHERE expires_at <= $1`
	cmd, err := s.db.Exec(ctx, query, before)
	if err != nil {
		return 0, storeError("purge tokens", err)
	}
	return cmd.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*domain.TokenRecord, error) {
	var (
		record    domain.TokenRecord
		tokenType string
	)
	if err := row.Scan(
		&record.ID,
		&record.Token,
		&record.Subject,
		&tokenType,
		&record.IssuedAt,
		&record.ExpiresAt,
	); err != nil {
		return nil, err
	}
	record.Type = domain.TokenType(tokenType)
	return &record, nil
}
