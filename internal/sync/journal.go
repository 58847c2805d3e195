package sync

import (
	"context"
	"encoding/json"

	redis "github.com/redis/go-redis/v9"
)

// Journal persists ops that have not reached the remote store yet, so a
// restart does not silently drop unsynced mutations. The redis journal is
// optional; without it the outbox degrades to purely in-memory.
type Journal interface {
	Append(ctx context.Context, op Op) error
	Remove(ctx context.Context, opID string) error
	Pending(ctx context.Context) ([]Op, error)
}

type NoopJournal struct{}

func (NoopJournal) Append(_ context.Context, _ Op) error      { return nil }
func (NoopJournal) Remove(_ context.Context, _ string) error  { return nil }
func (NoopJournal) Pending(_ context.Context) ([]Op, error)   { return nil, nil }

const journalKey = "barcaixa:outbox"

type RedisJournal struct {
	client *redis.Client
}

func NewRedisJournal(addr string, password string, db int) *RedisJournal {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisJournal{client: client}
}

func (j *RedisJournal) Ping(ctx context.Context) error {
	return j.client.Ping(ctx).Err()
}

func (j *RedisJournal) Close() error {
	return j.client.Close()
}

func (j *RedisJournal) Append(ctx context.Context, op Op) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return err
	}
	return j.client.HSet(ctx, journalKey, op.ID, payload).Err()
}

func (j *RedisJournal) Remove(ctx context.Context, opID string) error {
	return j.client.HDel(ctx, journalKey, opID).Err()
}

func (j *RedisJournal) Pending(ctx context.Context) ([]Op, error) {
	entries, err := j.client.HGetAll(ctx, journalKey).Result()
	if err != nil {
		return nil, err
	}
	ops := make([]Op, 0, len(entries))
	for _, raw := range entries {
		var op Op
		if err := json.Unmarshal([]byte(raw), &op); err != nil {
			continue
		}
		ops = append(ops, op)
	}
	sortOps(ops)
	return ops, nil
}
