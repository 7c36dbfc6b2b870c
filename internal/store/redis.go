package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/cheese-chess-hub/internal/match"
)

// Redis stores each record as one JSON value with an id sequence and a sorted index.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to redisURL (redis:// or rediss://) and pings it.
// ttl applies to match records; zero keeps them forever.
func NewRedis(ctx context.Context, redisURL string, ttl time.Duration) (*Redis, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis store")
	}
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb, ttl: ttl}, nil
}

func matchKey(id int) string          { return "chess:match:" + strconv.Itoa(id) }
func identityKey(token string) string { return "chess:auth:" + strings.TrimSpace(token) }

const (
	seqKey   = "chess:match:seq"
	indexKey = "chess:match:index"
)

func (s *Redis) GetMatch(ctx context.Context, id int) (*match.Record, error) {
	raw, err := s.rdb.Get(ctx, matchKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, dataAccess("get match", err)
	}
	var rec match.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, dataAccess("decode match", err)
	}
	return &rec, nil
}

func (s *Redis) CreateMatch(ctx context.Context, rec *match.Record) (int, error) {
	if rec == nil {
		return 0, fmt.Errorf("create match: nil record")
	}
	if rec.ID != 0 {
		if err := s.insert(ctx, rec, rec.ID); err != nil {
			return 0, err
		}
		return rec.ID, nil
	}
	// explicitly chosen ids may already occupy the next sequence value
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		n, err := s.rdb.Incr(ctx, seqKey).Result()
		if err != nil {
			return 0, dataAccess("next match id", err)
		}
		err = s.insert(ctx, rec, int(n))
		if errors.Is(err, errIDTaken) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return int(n), nil
	}
	return 0, dataAccess("create match", fmt.Errorf("no free id after %d attempts", maxIDAttempts))
}

const maxIDAttempts = 64

var errIDTaken = errors.New("match id taken")

func (s *Redis) insert(ctx context.Context, rec *match.Record, id int) error {
	cp := *rec
	cp.ID = id
	raw, err := json.Marshal(&cp)
	if err != nil {
		return dataAccess("encode match", err)
	}
	created, err := s.rdb.SetNX(ctx, matchKey(id), raw, s.ttl).Result()
	if err != nil {
		return dataAccess("create match", err)
	}
	if !created {
		return dataAccess("create match", fmt.Errorf("id %d: %w", id, errIDTaken))
	}
	if err := s.rdb.ZAdd(ctx, indexKey, redis.Z{Score: float64(id), Member: strconv.Itoa(id)}).Err(); err != nil {
		return dataAccess("index match", err)
	}
	return nil
}

func (s *Redis) UpdateMatch(ctx context.Context, id int, rec *match.Record) error {
	if rec == nil {
		return fmt.Errorf("update match: nil record")
	}
	cp := *rec
	cp.ID = id
	raw, err := json.Marshal(&cp)
	if err != nil {
		return dataAccess("encode match", err)
	}
	key := matchKey(id)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return match.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, match.ErrNotFound):
		return err
	default:
		return dataAccess("update match", err)
	}
}

func (s *Redis) ListMatches(ctx context.Context) ([]*match.Record, error) {
	ids, err := s.rdb.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, dataAccess("list matches", err)
	}
	out := make([]*match.Record, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		rec, err := s.GetMatch(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			// expired; drop the stale index entry
			_ = s.rdb.ZRem(ctx, indexKey, raw).Err()
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Redis) GetIdentity(ctx context.Context, token string) (string, bool, error) {
	if strings.TrimSpace(token) == "" {
		return "", false, nil
	}
	name, err := s.rdb.Get(ctx, identityKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, dataAccess("get identity", err)
	}
	return name, true, nil
}

func (s *Redis) PutIdentity(ctx context.Context, token, username string) error {
	if err := s.rdb.Set(ctx, identityKey(token), username, 0).Err(); err != nil {
		return dataAccess("put identity", err)
	}
	return nil
}

func (s *Redis) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// ParseRedisURL converts a redis:// or rediss:// URL into client options.
// rediss enables TLS; ACL usernames, the db path and query options are kept.
func ParseRedisURL(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}
