package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fsm-intake/internal/model"
	"fsm-intake/internal/repository"
)

const maxTxRetries = 10

// RedisEmailRepository stores records in a hosted Redis. Ids are kept newest
// first in a LIST and the records themselves as JSON in a HASH. Every
// mutation runs as a WATCH/MULTI transaction over both keys.
type RedisEmailRepository struct {
	client   redis.UniversalClient
	orderKey string
	dataKey  string
	max      int
}

func NewRedisEmailRepository(client redis.UniversalClient, keyPrefix string, max int) *RedisEmailRepository {
	if max <= 0 {
		max = repository.DefaultMaxEmails
	}
	if keyPrefix == "" {
		keyPrefix = "fsm-intake"
	}
	return &RedisEmailRepository{
		client:   client,
		orderKey: keyPrefix + ":emails:order",
		dataKey:  keyPrefix + ":emails:data",
		max:      max,
	}
}

// NewClient parses a redis:// URL into a client.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (r *RedisEmailRepository) List(ctx context.Context) ([]*model.Email, error) {
	ids, err := r.client.LRange(ctx, r.orderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read email order: %w", err)
	}
	if len(ids) == 0 {
		return []*model.Email{}, nil
	}

	values, err := r.client.HMGet(ctx, r.dataKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read emails: %w", err)
	}

	emails := make([]*model.Email, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// id removed between the two reads
			continue
		}
		email, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode email %s: %w", ids[i], err)
		}
		emails = append(emails, email)
	}
	return emails, nil
}

func (r *RedisEmailRepository) FindByID(ctx context.Context, id string) (*model.Email, error) {
	raw, err := r.client.HGet(ctx, r.dataKey, id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrEmailNotFound
		}
		return nil, fmt.Errorf("failed to read email %s: %w", id, err)
	}
	return decode(raw)
}

func (r *RedisEmailRepository) Upsert(ctx context.Context, email *model.Email) (bool, error) {
	payload, err := json.Marshal(email)
	if err != nil {
		return false, fmt.Errorf("failed to encode email: %w", err)
	}

	var created bool
	err = r.transact(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, r.dataKey, email.ID).Result()
		if err != nil {
			return err
		}
		created = !exists

		var evicted []string
		if !exists {
			n, err := tx.LLen(ctx, r.orderKey).Result()
			if err != nil {
				return err
			}
			if n >= int64(r.max) {
				evicted, err = tx.LRange(ctx, r.orderKey, int64(r.max-1), -1).Result()
				if err != nil {
					return err
				}
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.dataKey, email.ID, payload)
			if !exists {
				pipe.LPush(ctx, r.orderKey, email.ID)
				pipe.LTrim(ctx, r.orderKey, 0, int64(r.max-1))
				if len(evicted) > 0 {
					pipe.HDel(ctx, r.dataKey, evicted...)
				}
			}
			return nil
		})
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert email %s: %w", email.ID, err)
	}
	return created, nil
}

func (r *RedisEmailRepository) Delete(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := r.transact(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, r.dataKey, id).Result()
		if err != nil {
			return err
		}
		if !exists {
			removed = false
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, r.dataKey, id)
			pipe.LRem(ctx, r.orderKey, 0, id)
			return nil
		})
		removed = err == nil
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete email %s: %w", id, err)
	}
	return removed, nil
}

func (r *RedisEmailRepository) Clear(ctx context.Context) (int, error) {
	var cleared int
	err := r.transact(ctx, func(tx *redis.Tx) error {
		n, err := tx.LLen(ctx, r.orderKey).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.orderKey, r.dataKey)
			return nil
		})
		cleared = int(n)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear emails: %w", err)
	}
	return cleared, nil
}

func (r *RedisEmailRepository) Count(ctx context.Context) (int, error) {
	n, err := r.client.LLen(ctx, r.orderKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count emails: %w", err)
	}
	return int(n), nil
}

// transact retries fn while another client races us on the watched keys.
func (r *RedisEmailRepository) transact(ctx context.Context, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, fn, r.orderKey, r.dataKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("transaction retries exhausted: %w", redis.TxFailedErr)
}

func decode(raw string) (*model.Email, error) {
	var email model.Email
	if err := json.Unmarshal([]byte(raw), &email); err != nil {
		return nil, err
	}
	return &email, nil
}
