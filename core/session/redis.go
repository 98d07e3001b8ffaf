package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iclass/poto/core/codec"
	"github.com/iclass/poto/core/handler"
)

// defaultRedisPrefix namespaces session keys in a shared Redis.
const defaultRedisPrefix = "poto:session:"

// setValueRetries bounds optimistic-transaction retries under contention.
// The critical section is a single GET/SET pair, so even heavy same-principal
// contention resolves well inside this budget.
const setValueRetries = 50

// RedisStore keeps session records in Redis, one key per principal with a
// TTL equal to the maximum idle age. Records are serialized through the
// typed codec, so rich session values survive the round trip. Suitable for
// multi-process deployments where the memory backend cannot be shared.
type RedisStore struct {
	client redis.UniversalClient
	codec  *codec.Codec
	prefix string
	maxAge time.Duration
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithRedisPrefix overrides the poto:session: key prefix.
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRedisMaxAge sets the per-record TTL and the idle age used by cleanup.
func WithRedisMaxAge(maxAge time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if maxAge > 0 {
			s.maxAge = maxAge
		}
	}
}

// WithRedisCodec overrides the codec used to serialize records.
func WithRedisCodec(c *codec.Codec) RedisStoreOption {
	return func(s *RedisStore) {
		if c != nil {
			s.codec = c
		}
	}
}

// NewRedisStore creates a Redis-backed session store over an existing client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client: client,
		codec:  codec.New(),
		prefix: defaultRedisPrefix,
		maxAge: defaultCookieMaxAge,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(principalID string) string {
	return s.prefix + principalID
}

// GetSession implements Store.
func (s *RedisStore) GetSession(ctx handler.Context) (*Record, error) {
	pid, err := principalID(ctx)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, pid)
}

func (s *RedisStore) load(ctx context.Context, pid string) (*Record, error) {
	payload, err := s.client.Get(ctx, s.key(pid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	rec, err := decodeRecord(s.codec, payload)
	if err != nil {
		// An undecodable record is treated as absent, same as a bad cookie.
		return nil, nil
	}
	if rec.PrincipalID != pid || rec.IdleFor() > s.maxAge {
		return nil, nil
	}
	return rec, nil
}

// SetSession implements Store.
func (s *RedisStore) SetSession(ctx handler.Context, rec *Record) error {
	pid, err := principalID(ctx)
	if err != nil {
		return err
	}
	return s.save(ctx, pid, rec)
}

func (s *RedisStore) save(ctx context.Context, pid string, rec *Record) error {
	stored := rec.clone()
	stored.PrincipalID = pid
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.Touch()

	payload, err := encodeRecord(ctx, s.codec, stored)
	if err != nil {
		return errors.Join(ErrSaveSession, err)
	}
	if err := s.client.Set(ctx, s.key(pid), payload, s.maxAge).Err(); err != nil {
		return errors.Join(ErrSaveSession, err)
	}
	return nil
}

// DeleteSession implements Store.
func (s *RedisStore) DeleteSession(ctx handler.Context) error {
	pid, err := principalID(ctx)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key(pid)).Err(); err != nil {
		return errors.Join(ErrDeleteSession, err)
	}
	return nil
}

// GetValue implements Store.
func (s *RedisStore) GetValue(ctx handler.Context, key string) (any, bool, error) {
	rec, err := s.GetSession(ctx)
	if err != nil || rec == nil {
		return nil, false, err
	}
	v, ok := rec.Data[key]
	return v, ok, nil
}

// SetValue implements Store. The read-mutate-write cycle runs as an
// optimistic transaction watching the record key, retried a bounded number
// of times, so concurrent writers for the same principal do not lose
// updates.
func (s *RedisStore) SetValue(ctx handler.Context, key string, value any) error {
	pid, err := principalID(ctx)
	if err != nil {
		return err
	}
	redisKey := s.key(pid)

	txn := func(tx *redis.Tx) error {
		rec := NewRecord(pid)
		payload, err := tx.Get(ctx, redisKey).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			if existing, derr := decodeRecord(s.codec, payload); derr == nil && existing.PrincipalID == pid {
				rec = existing
			}
		}

		rec.Data[key] = value
		rec.Touch()

		encoded, err := encodeRecord(ctx, s.codec, rec)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, encoded, s.maxAge)
			return nil
		})
		return err
	}

	for i := 0; i < setValueRetries; i++ {
		err := s.client.Watch(ctx, txn, redisKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return errors.Join(ErrSaveSession, err)
	}
	return errors.Join(ErrSaveSession, errors.New("transaction contention exceeded retry budget"))
}

// Stats implements Store by scanning the key prefix.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		stats.ActiveSessions++
		stats.Principals = append(stats.Principals, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// CleanupOlderThan implements Store. Redis expires records via TTL; an
// explicit pass only evicts records whose payload reports a longer idle age
// than requested.
func (s *RedisStore) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	evicted := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		payload, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		rec, err := decodeRecord(s.codec, payload)
		if err != nil || rec.IdleFor() > age {
			if s.client.Del(ctx, key).Err() == nil {
				evicted++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return evicted, err
	}
	return evicted, nil
}
