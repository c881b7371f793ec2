package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/automateflow/automateflow/pkg/models"
)

// retryBaseDelay is the first retry backoff; each subsequent attempt doubles it.
const retryBaseDelay = time.Second

// cancelScript removes a descriptor only while it is still in a pre-execution
// state. Returns 1 when removal happened, 0 otherwise.
var cancelScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if state == 'waiting' then
	redis.call('ZREM', KEYS[2], ARGV[1])
elseif state == 'delayed' then
	redis.call('ZREM', KEYS[3], ARGV[1])
else
	return 0
end
redis.call('HSET', KEYS[1], 'state', 'canceled')
return 1
`)

// RedisQueue implements Queue on top of Redis. Waiting descriptors live in a
// sorted set scored by priority and enqueue order; retries wait in a delayed
// sorted set scored by their due time; exhausted descriptors land in a dead
// set and are never pushed back to the store by this side.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a RedisQueue from a Redis URL.
func NewRedisQueue(redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return &RedisQueue{client: redis.NewClient(opts)}, nil
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) Enqueue(ctx context.Context, d Descriptor) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}

	seq, err := q.client.Incr(ctx, seqKey()).Result()
	if err != nil {
		return fmt.Errorf("next enqueue seq: %w", err)
	}

	id := d.JobID.String()
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(d.JobID), map[string]any{
		"data":        string(data),
		"state":       "waiting",
		"attempts":    0,
		"max_retries": d.MaxRetries,
	})
	pipe.ZAdd(ctx, waitingKey(), redis.Z{Score: waitingScore(d.Priority, seq), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue job %s: %w", id, err)
	}
	return nil
}

func (q *RedisQueue) Cancel(ctx context.Context, jobID uuid.UUID) (bool, error) {
	removed, err := cancelScript.Run(ctx, q.client,
		[]string{jobKey(jobID), waitingKey(), delayedKey()}, jobID.String()).Int()
	if err != nil {
		return false, fmt.Errorf("cancel queue entry %s: %w", jobID, err)
	}
	return removed == 1, nil
}

func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.ZCard(ctx, waitingKey())
	delayed := pipe.ZCard(ctx, delayedKey())
	active := pipe.SCard(ctx, activeKey())
	completed := pipe.SCard(ctx, completedKey())
	failed := pipe.SCard(ctx, failedKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{
		Waiting:   waiting.Val(),
		Active:    active.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
		Delayed:   delayed.Val(),
	}, nil
}

// Claim pops the highest-priority waiting descriptor and marks it active.
// Returns nil with no error when the queue is empty. Exposed for worker
// processes colocated with this codebase and for tests.
func (q *RedisQueue) Claim(ctx context.Context) (*Descriptor, error) {
	entries, err := q.client.ZPopMin(ctx, waitingKey(), 1).Result()
	if err != nil {
		return nil, fmt.Errorf("claim descriptor: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	id, err := uuid.Parse(entries[0].Member.(string))
	if err != nil {
		return nil, fmt.Errorf("claim descriptor: bad member %v", entries[0].Member)
	}

	pipe := q.client.TxPipeline()
	data := pipe.HGet(ctx, jobKey(id), "data")
	pipe.HSet(ctx, jobKey(id), "state", "active")
	pipe.SAdd(ctx, activeKey(), id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("mark active %s: %w", id, err)
	}

	var d Descriptor
	if err := json.Unmarshal([]byte(data.Val()), &d); err != nil {
		return nil, fmt.Errorf("unmarshal descriptor %s: %w", id, err)
	}
	return &d, nil
}

// Finish records a worker-reported attempt outcome. Successful or canceled
// outcomes settle the descriptor; a failed attempt goes back to the delayed
// set with exponential backoff until the retry budget is spent, then moves to
// the dead set. The job row is never touched from here.
func (q *RedisQueue) Finish(ctx context.Context, jobID uuid.UUID, status string) error {
	id := jobID.String()

	if status != models.JobStatusFailed {
		pipe := q.client.TxPipeline()
		pipe.SRem(ctx, activeKey(), id)
		pipe.HSet(ctx, jobKey(jobID), "state", "completed")
		pipe.SAdd(ctx, completedKey(), id)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("settle %s: %w", id, err)
		}
		return nil
	}

	attempts, err := q.client.HIncrBy(ctx, jobKey(jobID), "attempts", 1).Result()
	if err != nil {
		return fmt.Errorf("count attempt %s: %w", id, err)
	}
	maxRetries, err := q.client.HGet(ctx, jobKey(jobID), "max_retries").Int64()
	if err != nil {
		return fmt.Errorf("read retry budget %s: %w", id, err)
	}

	pipe := q.client.TxPipeline()
	pipe.SRem(ctx, activeKey(), id)
	if attempts < maxRetries {
		due := time.Now().Add(nextBackoff(int(attempts)))
		pipe.HSet(ctx, jobKey(jobID), "state", "delayed")
		pipe.ZAdd(ctx, delayedKey(), redis.Z{Score: float64(due.UnixMilli()), Member: id})
	} else {
		pipe.HSet(ctx, jobKey(jobID), "state", "failed")
		pipe.SAdd(ctx, failedKey(), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("settle failed attempt %s: %w", id, err)
	}
	return nil
}

// PromoteDue moves delayed descriptors whose backoff has elapsed back into the
// waiting set at their original priority.
func (q *RedisQueue) PromoteDue(ctx context.Context) error {
	now := float64(time.Now().UnixMilli())
	ids, err := q.client.ZRangeByScore(ctx, delayedKey(), &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil {
		return fmt.Errorf("list due descriptors: %w", err)
	}

	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		data, err := q.client.HGet(ctx, jobKey(id), "data").Result()
		if err != nil {
			continue
		}
		var d Descriptor
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			continue
		}
		seq, err := q.client.Incr(ctx, seqKey()).Result()
		if err != nil {
			return fmt.Errorf("next enqueue seq: %w", err)
		}
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, delayedKey(), raw)
		pipe.HSet(ctx, jobKey(id), "state", "waiting")
		pipe.ZAdd(ctx, waitingKey(), redis.Z{Score: waitingScore(d.Priority, seq), Member: raw})
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("promote %s: %w", raw, err)
		}
	}
	return nil
}

// IncrWithExpiry bumps a counter and refreshes its TTL in one round trip.
// Used by the rate-limit middleware.
func (q *RedisQueue) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := q.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// waitingScore orders the waiting set: lower scores pop first. Priority
// dominates (10 before 1); the enqueue sequence breaks ties FIFO.
func waitingScore(priority int, seq int64) float64 {
	if priority < models.MinPriority {
		priority = models.MinPriority
	}
	if priority > models.MaxPriority {
		priority = models.MaxPriority
	}
	return float64(models.MaxPriority-priority)*1e12 + float64(seq)
}

// nextBackoff returns the delay before retry attempt n (1-based): 1s, 2s, 4s...
// capped at 10 minutes. The shift is clamped so huge attempt counts cannot
// overflow the duration.
func nextBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	const maxDelay = 10 * time.Minute
	if attempt > 30 {
		return maxDelay
	}
	d := retryBaseDelay << (attempt - 1)
	if d > maxDelay {
		return maxDelay
	}
	return d
}
