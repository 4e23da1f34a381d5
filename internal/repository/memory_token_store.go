package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/token-gate/internal/domain"
)

type tokenKey struct {
	token     string
	tokenType domain.TokenType
	subject   string
}

// MemoryTokenStore keeps token records in process memory. It backs single
// instance deployments and tests.
type MemoryTokenStore struct {
	mu      sync.Mutex
	records map[tokenKey]domain.TokenRecord
	now     func() time.Time
}

// NewMemoryTokenStore builds an empty store. A nil clock defaults to time.Now.
func NewMemoryTokenStore(now func() time.Time) *MemoryTokenStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryTokenStore{
		records: make(map[tokenKey]domain.TokenRecord),
		now:     now,
	}
}

func keyOf(token string, tokenType domain.TokenType, subject string) tokenKey {
	return tokenKey{token: token, tokenType: tokenType, subject: subject}
}

func (s *MemoryTokenStore) Save(ctx context.Context, record *domain.TokenRecord) error {
	if err := ctx.Err(); err != nil {
		return storeError("save token", err)
	}
	if err := validateRecord(record); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(record.Token, record.Type, record.Subject)
	if existing, ok := s.records[key]; ok && !existing.ExpiredAt(s.now()) {
		return storeError("save token", ErrDuplicate)
	}
	s.records[key] = *record
	return nil
}

func (s *MemoryTokenStore) FindOne(ctx context.Context, token string, tokenType domain.TokenType, subject string) (*domain.TokenRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("find token", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[keyOf(token, tokenType, subject)]
	if !ok || record.ExpiredAt(s.now()) {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (s *MemoryTokenStore) Consume(ctx context.Context, token string, tokenType domain.TokenType, subject string) (*domain.TokenRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("consume token", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(token, tokenType, subject)
	record, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.records, key)
	if record.ExpiredAt(s.now()) {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (s *MemoryTokenStore) DeleteOne(ctx context.Context, record *domain.TokenRecord) error {
	if err := ctx.Err(); err != nil {
		return storeError("delete token", err)
	}
	if record == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, keyOf(record.Token, record.Type, record.Subject))
	return nil
}

func (s *MemoryTokenStore) DeleteMany(ctx context.Context, subject string, tokenType domain.TokenType) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeError("delete tokens", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for key := range s.records {
		if key.subject == subject && key.tokenType == tokenType {
			delete(s.records, key)
			count++
		}
	}
	return count, nil
}

func (s *MemoryTokenStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeError("purge tokens", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for key, record := range s.records {
		if record.ExpiredAt(before) {
			delete(s.records, key)
			count++
		}
	}
	return count, nil
}

// Len returns the number of stored records, expired ones included.
func (s *MemoryTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
