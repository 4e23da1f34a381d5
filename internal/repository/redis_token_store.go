package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/token-gate/internal/domain"
)

const (
	tokenKeyPrefix   = "token:"
	tokenIndexPrefix = "token_index:"
)

// consumeScript deletes the record and its index entry in one step so that
// only one of two racing consumers receives the value.
var consumeScript = redis.NewScript(`
local value = redis.call('GET', KEYS[1])
if not value then
  return false
end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
return value
`)

var deleteManyScript = redis.NewScript(`
local members = redis.call('SMEMBERS', KEYS[1])
local removed = 0
for _, token in ipairs(members) do
  removed = removed + redis.call('DEL', ARGV[1] .. token)
end
redis.call('DEL', KEYS[1])
return removed
`)

type redisTokenValue struct {
	ID        string    `json:"id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type redisTokenStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisTokenStore returns a TokenStore keeping each record under a key
// that expires with the token, plus a per subject/type index set.
func NewRedisTokenStore(client *redis.Client) TokenStore {
	return &redisTokenStore{client: client, now: time.Now}
}

func recordPrefix(tokenType domain.TokenType, subject string) string {
	return tokenKeyPrefix + string(tokenType) + ":" + subject + ":"
}

func recordKey(token string, tokenType domain.TokenType, subject string) string {
	return recordPrefix(tokenType, subject) + token
}

func indexKey(subject string, tokenType domain.TokenType) string {
	return tokenIndexPrefix + string(tokenType) + ":" + subject
}

func (s *redisTokenStore) Save(ctx context.Context, record *domain.TokenRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	ttl := record.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("save token: record already expired at %s", record.ExpiresAt.Format(time.RFC3339))
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	payload, err := json.Marshal(redisTokenValue{
		ID:        record.ID,
		IssuedAt:  record.IssuedAt,
		ExpiresAt: record.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("encode token record: %w", err)
	}

	var created *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, recordKey(record.Token, record.Type, record.Subject), payload, ttl)
		pipe.SAdd(ctx, indexKey(record.Subject, record.Type), record.Token)
		return nil
	})
	if err != nil {
		return storeError("save token", err)
	}
	if !created.Val() {
		return storeError("save token", ErrDuplicate)
	}
	return nil
}

func (s *redisTokenStore) FindOne(ctx context.Context, token string, tokenType domain.TokenType, subject string) (*domain.TokenRecord, error) {
	raw, err := s.client.Get(ctx, recordKey(token, tokenType, subject)).Bytes()
	if err != nil {
		return nil, storeError("find token", err)
	}
	return s.decode(raw, token, tokenType, subject)
}

func (s *redisTokenStore) Consume(ctx context.Context, token string, tokenType domain.TokenType, subject string) (*domain.TokenRecord, error) {
	keys := []string{recordKey(token, tokenType, subject), indexKey(subject, tokenType)}
	raw, err := consumeScript.Run(ctx, s.client, keys, token).Text()
	if err != nil {
		return nil, storeError("consume token", err)
	}
	return s.decode([]byte(raw), token, tokenType, subject)
}

func (s *redisTokenStore) DeleteOne(ctx context.Context, record *domain.TokenRecord) error {
	if record == nil {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, recordKey(record.Token, record.Type, record.Subject))
		pipe.SRem(ctx, indexKey(record.Subject, record.Type), record.Token)
		return nil
	})
	return storeError("delete token", err)
}

func (s *redisTokenStore) DeleteMany(ctx context.Context, subject string, tokenType domain.TokenType) (int64, error) {
	keys := []string{indexKey(subject, tokenType)}
	removed, err := deleteManyScript.Run(ctx, s.client, keys, recordPrefix(tokenType, subject)).Int64()
	if err != nil {
		return 0, storeError("delete tokens", err)
	}
	return removed, nil
}

// PurgeExpired prunes index entries whose record key has already expired.
// Records themselves are evicted by Redis key expiry.
func (s *redisTokenStore) PurgeExpired(ctx context.Context, _ time.Time) (int64, error) {
	var pruned int64
	iter := s.client.Scan(ctx, 0, tokenIndexPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		idx := iter.Val()
		tokenType, subject, ok := strings.Cut(strings.TrimPrefix(idx, tokenIndexPrefix), ":")
		if !ok {
			continue
		}
		members, err := s.client.SMembers(ctx, idx).Result()
		if err != nil {
			return pruned, storeError("purge tokens", err)
		}
		for _, token := range members {
			exists, err := s.client.Exists(ctx, recordKey(token, domain.TokenType(tokenType), subject)).Result()
			if err != nil {
				return pruned, storeError("purge tokens", err)
			}
			if exists > 0 {
				continue
			}
			if err := s.client.SRem(ctx, idx, token).Err(); err != nil {
				return pruned, storeError("purge tokens", err)
			}
			pruned++
		}
	}
	if err := iter.Err(); err != nil {
		return pruned, storeError("purge tokens", err)
	}
	return pruned, nil
}

func (s *redisTokenStore) decode(raw []byte, token string, tokenType domain.TokenType, subject string) (*domain.TokenRecord, error) {
	var value redisTokenValue
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode token record: %w", err)
	}
	record := &domain.TokenRecord{
		ID:        value.ID,
		Token:     token,
		Subject:   subject,
		Type:      tokenType,
		IssuedAt:  value.IssuedAt,
		ExpiresAt: value.ExpiresAt,
	}
	if record.ExpiredAt(s.now()) {
		return nil, ErrNotFound
	}
	return record, nil
}
