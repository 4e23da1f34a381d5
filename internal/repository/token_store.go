package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/token-gate/internal/domain"
)

var (
	// ErrNotFound reports that no live record matched the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate reports a write that would overwrite an existing record.
	ErrDuplicate = errors.New("record already exists")
	// ErrStoreUnavailable marks transient connectivity or timeout failures.
	// Callers may retry these; they never mean the record is absent.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// TokenStore persists records for stateful token types.
//
// FindOne and Consume never return a record whose expiry has passed, even when
// physical deletion has not happened yet.
type TokenStore interface {
	Save(ctx context.Context, record *domain.TokenRecord) error
	FindOne(ctx context.Context, token string, tokenType domain.TokenType, subject string) (*domain.TokenRecord, error)
	// Consume atomically removes and returns a live record. Of two concurrent
	// consumers of the same record exactly one succeeds; the other gets ErrNotFound.
	Consume(ctx context.Context, token string, tokenType domain.TokenType, subject string) (*domain.TokenRecord, error)
	DeleteOne(ctx context.Context, record *domain.TokenRecord) error
	DeleteMany(ctx context.Context, subject string, tokenType domain.TokenType) (int64, error)
	// PurgeExpired physically removes records that expired before the given time.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// IsUnavailable reports whether err is a transient store failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// storeError classifies driver errors so that timeouts and connection
// failures stay distinguishable from a missing record.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if transient(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func transient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, redis.ErrClosed) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func validateRecord(record *domain.TokenRecord) error {
	if record == nil {
		return errors.New("token record is nil")
	}
	if record.Token == "" || record.Subject == "" {
		return errors.New("token record requires token and subject")
	}
	if !record.Type.Persisted() {
		return fmt.Errorf("token type %q is not persisted", record.Type)
	}
	return nil
}
