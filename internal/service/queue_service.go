package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoJob is returned by ClaimBlocking when nothing arrived before the timeout.
var ErrNoJob = errors.New("no job claimed")

type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, jobID string) error
	RequeueStale(ctx context.Context, limit int64) (int64, error)
}

// redisQueue is a reliable queue on two Redis lists.
// Claim: BRPOPLPUSH queue -> processing
// Ack:   LREM from processing
// A worker that dies between claim and ack leaves the id in processing
// until RequeueStale moves it back.
//
// lockPrefix is the run-lock key prefix (lock.Client.Key("")): an id whose
// lock key exists is still being converted and stays in processing.
type redisQueue struct {
	rdb           *redis.Client
	queueKey      string
	processingKey string
	lockPrefix    string
}

func NewRedisQueue(rdb *redis.Client, queueKey, processingKey, lockPrefix string) Queue {
	return &redisQueue{rdb: rdb, queueKey: queueKey, processingKey: processingKey, lockPrefix: lockPrefix}
}

func (q *redisQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.rdb.LPush(ctx, q.queueKey, jobID).Err()
}

// ClaimBlocking waits in short slots so ctx cancellation is noticed promptly.
// timeout <= 0 waits until ctx is done.
func (q *redisQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	forever := timeout <= 0
	deadline := time.Now().Add(timeout)

	slot := 1 * time.Second
	if !forever && timeout < slot {
		slot = timeout
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		wait := slot
		if !forever {
			remain := time.Until(deadline)
			if remain <= 0 {
				return "", ErrNoJob
			}
			if remain < wait {
				wait = remain
			}
		}

		id, err := q.rdb.BRPopLPush(ctx, q.queueKey, q.processingKey, wait).Result()
		if err == nil {
			return id, nil
		}
		if errors.Is(err, redis.Nil) {
			continue
		}
		return "", err
	}
}

func (q *redisQueue) Ack(ctx context.Context, jobID string) error {
	return q.rdb.LRem(ctx, q.processingKey, 1, jobID).Err()
}

// requeueScript walks the oldest limit ids of processing (KEYS[1]) and moves
// those without a live run lock (ARGV[2] .. id) back to the queue (KEYS[2]).
var requeueScript = redis.NewScript(`
local ids = redis.call("LRANGE", KEYS[1], -tonumber(ARGV[1]), -1)
local moved = 0
for i = #ids, 1, -1 do
  local id = ids[i]
  if ARGV[2] == "" or redis.call("EXISTS", ARGV[2] .. id) == 0 then
    if redis.call("LREM", KEYS[1], -1, id) > 0 then
      redis.call("LPUSH", KEYS[2], id)
      moved = moved + 1
    end
  end
end
return moved
`)

// RequeueStale moves up to limit abandoned ids from processing back to the queue.
// It's a simple "reaper": at-least-once delivery.
func (q *redisQueue) RequeueStale(ctx context.Context, limit int64) (int64, error) {
	if limit <= 0 {
		return 0, nil
	}
	return requeueScript.Run(ctx, q.rdb, []string{q.processingKey, q.queueKey}, limit, q.lockPrefix).Int64()
}

// memoryQueue is an unbounded FIFO for single-process deployments.
// Claimed ids are not tracked: a crash loses in-flight work together with the process.
type memoryQueue struct {
	mu    sync.Mutex
	items []string
	ready chan struct{}
}

func NewMemoryQueue() Queue {
	return &memoryQueue{ready: make(chan struct{}, 1)}
}

func (q *memoryQueue) Enqueue(_ context.Context, jobID string) error {
	q.mu.Lock()
	q.items = append(q.items, jobID)
	q.mu.Unlock()
	q.signal()
	return nil
}

func (q *memoryQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *memoryQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			id := q.items[0]
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return id, nil
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-expired:
			return "", ErrNoJob
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (q *memoryQueue) Ack(context.Context, string) error { return nil }

func (q *memoryQueue) RequeueStale(context.Context, int64) (int64, error) { return 0, nil }
