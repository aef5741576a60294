package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisRecordVersion1 = 1

// RedisStore keeps each account as one versioned JSON value. Updates use
// WATCH/MULTI so concurrent writers of one account retry with backoff
// instead of overwriting each other.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	roles  map[Role]struct{}
	now    func() time.Time
	budget time.Duration
}

// NewRedisStore returns a RedisStore under prefix ("pa" when empty).
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "pa"
	}
	return &RedisStore{redis: client, prefix: prefix, now: time.Now, budget: ContentionBudget}
}

func (s *RedisStore) accountKey(username string) string {
	return s.prefix + ":acct:" + username
}

func (s *RedisStore) emailKey(email string) string {
	return s.prefix + ":email:" + email
}

func (s *RedisStore) rolesKey() string {
	return s.prefix + ":roles"
}

func (s *RedisStore) relationsKey() string {
	return s.prefix + ":schema:relations"
}

func (s *RedisStore) Migrate(ctx context.Context, schema Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}

	roles := make([]interface{}, 0, len(schema.Roles))
	for _, r := range schema.Roles {
		roles = append(roles, string(r))
	}
	relations := make(map[string]interface{}, len(schema.Relations))
	for _, r := range schema.Relations {
		relations[r.From+"."+r.ForeignKey] = r.To
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.rolesKey(), roles...)
		if len(relations) > 0 {
			pipe.HSet(ctx, s.relationsKey(), relations)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	s.roles = schema.roleSet()
	return nil
}

func (s *RedisStore) Create(ctx context.Context, account *Account) error {
	if err := validateForCreate(account, s.roles); err != nil {
		return err
	}

	stored := account.Clone()
	now := s.now().UTC()
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now
	encoded, err := encodeAccount(stored)
	if err != nil {
		return err
	}

	acctKey := s.accountKey(stored.Username)
	emailKey := s.emailKey(stored.Email)

	return retryContended(ctx, s.budget, func() error {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, acctKey).Result()
			if err != nil {
				return err
			}
			m, err := tx.Exists(ctx, emailKey).Result()
			if err != nil {
				return err
			}
			if n > 0 || m > 0 {
				return &ConflictError{UsernameTaken: n > 0, EmailTaken: m > 0}
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, acctKey, encoded, 0)
				pipe.Set(ctx, emailKey, stored.Username, 0)
				return nil
			})
			return err
		}, acctKey, emailKey)

		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			return errContended
		case errors.Is(err, ErrConflict):
			return err
		default:
			return unavailable(err)
		}
	})
}

func (s *RedisStore) Get(ctx context.Context, username string) (*Account, error) {
	data, err := s.redis.Get(ctx, s.accountKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return decodeAccount(data)
}

func (s *RedisStore) Exists(ctx context.Context, username, email string) (bool, bool, error) {
	pipe := s.redis.Pipeline()
	u := pipe.Exists(ctx, s.accountKey(username))
	e := pipe.Exists(ctx, s.emailKey(email))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, false, unavailable(err)
	}
	return u.Val() > 0, e.Val() > 0, nil
}

func (s *RedisStore) Update(ctx context.Context, username string, fn UpdateFunc) (*Account, error) {
	key := s.accountKey(username)

	var result *Account
	err := retryContended(ctx, s.budget, func() error {
		var abort error
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			current, err := decodeAccount(data)
			if err != nil {
				return err
			}

			working := current.Clone()
			if err := fn(working); err != nil {
				abort = err
				return nil
			}
			working.ID = current.ID
			working.Username = current.Username
			working.Email = current.Email
			working.CreatedAt = current.CreatedAt
			working.Version = current.Version + 1
			working.UpdatedAt = s.now().UTC()

			encoded, err := encodeAccount(working)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			if err != nil {
				return err
			}
			result = working
			return nil
		}, key)

		switch {
		case errors.Is(err, redis.TxFailedErr):
			return errContended
		case errors.Is(err, redis.Nil):
			return ErrNotFound
		case err != nil:
			if errors.Is(err, ErrUnavailable) {
				return err
			}
			return unavailable(err)
		}
		return abort
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Close is a no-op; the caller owns the client.
func (s *RedisStore) Close(context.Context) error { return nil }

func encodeAccount(a *Account) ([]byte, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, redisRecordVersion1)
	return append(out, body...), nil
}

func decodeAccount(data []byte) (*Account, error) {
	if len(data) < 2 || data[0] != redisRecordVersion1 {
		return nil, fmt.Errorf("%w: unsupported record encoding", ErrUnavailable)
	}
	var a Account
	if err := json.Unmarshal(data[1:], &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &a, nil
}
