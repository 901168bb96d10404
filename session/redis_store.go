package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"auto_dialogue_document/gate"
)

const (
	fieldRound        = "round"
	fieldLastDocument = "last_document_round"
	fieldCreatedAt    = "created_at"
)

// RedisStore keeps each session as a hash of counters plus a list of
// utterances, so several server processes can share one conversation.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "dialogdoc:session:",
		now:    time.Now,
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) utterancesKey(id string) string {
	return s.prefix + id + ":utterances"
}

func (s *RedisStore) Create(ctx context.Context) (State, error) {
	st := State{ID: newID(), CreatedAt: s.now().UTC()}
	err := s.client.HSet(ctx, s.key(st.ID),
		fieldRound, 0,
		fieldLastDocument, 0,
		fieldCreatedAt, st.CreatedAt.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return State{}, fmt.Errorf("create session: %w", err)
	}
	return st, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (State, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return State{}, fmt.Errorf("load session: %w", err)
	}
	if len(fields) == 0 {
		return State{}, ErrNotFound
	}
	st, err := decodeState(id, fields)
	if err != nil {
		return State{}, err
	}

	raw, err := s.client.LRange(ctx, s.utterancesKey(id), 0, -1).Result()
	if err != nil {
		return State{}, fmt.Errorf("load utterances: %w", err)
	}
	for _, item := range raw {
		var u gate.Utterance
		if err := json.Unmarshal([]byte(item), &u); err != nil {
			return State{}, fmt.Errorf("unmarshal utterance: %w", err)
		}
		st.Utterances = append(st.Utterances, u)
	}
	return st, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, u gate.Utterance) (State, error) {
	if err := s.mustExist(ctx, id); err != nil {
		return State{}, err
	}
	data, err := json.Marshal(u)
	if err != nil {
		return State{}, fmt.Errorf("marshal utterance: %w", err)
	}
	if err := s.client.RPush(ctx, s.utterancesKey(id), data).Err(); err != nil {
		return State{}, fmt.Errorf("append utterance: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *RedisStore) AdvanceRound(ctx context.Context, id string) (State, error) {
	if err := s.mustExist(ctx, id); err != nil {
		return State{}, err
	}
	if err := s.client.HIncrBy(ctx, s.key(id), fieldRound, 1).Err(); err != nil {
		return State{}, fmt.Errorf("advance round: %w", err)
	}
	return s.Get(ctx, id)
}

// maxClaimAttempts bounds how often a claim is retried after another
// writer touched the session hash between WATCH and EXEC.
const maxClaimAttempts = 8

// ClaimDocumentRound performs the compare-and-swap under WATCH. The watch
// covers the whole hash, so an unrelated write such as AdvanceRound also
// aborts the transaction; the claim is then retried and the re-read of
// last_document_round decides the outcome.
func (s *RedisStore) ClaimDocumentRound(ctx context.Context, id string, expectedLast, round int) (bool, error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		claimed, err := s.claimOnce(ctx, id, expectedLast, round)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, err
			}
			return false, fmt.Errorf("claim document round: %w", err)
		}
		return claimed, nil
	}
	return false, fmt.Errorf("claim document round: %d attempts: %w", maxClaimAttempts, redis.TxFailedErr)
}

func (s *RedisStore) claimOnce(ctx context.Context, id string, expectedLast, round int) (bool, error) {
	key := s.key(id)
	claimed := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		last, err := tx.HGet(ctx, key, fieldLastDocument).Int()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if last != expectedLast {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldLastDocument, round)
			return nil
		})
		if err != nil {
			return err
		}
		claimed = true
		return nil
	}, key)
	return claimed, err
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) mustExist(ctx context.Context, id string) error {
	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeState(id string, fields map[string]string) (State, error) {
	round, err := strconv.Atoi(fields[fieldRound])
	if err != nil {
		return State{}, fmt.Errorf("session %s: bad round: %w", id, err)
	}
	last, err := strconv.Atoi(fields[fieldLastDocument])
	if err != nil {
		return State{}, fmt.Errorf("session %s: bad last document round: %w", id, err)
	}
	created, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return State{}, fmt.Errorf("session %s: bad created_at: %w", id, err)
	}
	return State{ID: id, Round: round, LastDocumentRound: last, CreatedAt: created}, nil
}
