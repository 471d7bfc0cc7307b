// Package lock guards a conversion run against a second worker picking up the
// same job id. The lock is a Redis key per job holding the owner's token; it
// expires on its own when the owning process dies without releasing it.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "shpkml:lock:job:"
	defaultTTL    = 30 * time.Minute
)

var (
	// ErrHeld means another run owns the job.
	ErrHeld = errors.New("job is locked by another run")

	errNotReady = errors.New("redis lock not initialised")
)

type Client struct {
	rdb    *redis.Client
	prefix string
}

func New(rdb *redis.Client, prefix string) *Client {
	return &Client{rdb: rdb, prefix: strings.TrimSpace(prefix)}
}

// Key is the Redis key of the job's lock. The queue reaper reads it too.
func (c *Client) Key(jobID string) string {
	jobID = strings.TrimSpace(jobID)
	if c == nil || c.prefix == "" {
		return DefaultPrefix + jobID
	}
	return c.prefix + jobID
}

func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// Acquire takes the job's lock for ttl and returns the owner token.
func (c *Client) Acquire(ctx context.Context, jobID string, ttl time.Duration) (string, error) {
	if err := c.ready(jobID); err != nil {
		return "", err
	}
	token, err := newToken()
	if err != nil {
		return "", err
	}
	ok, err := c.rdb.SetNX(ctx, c.Key(jobID), token, orDefault(ttl)).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrHeld
	}
	return token, nil
}

// Both scripts act only while KEYS[1] still holds the caller's token (ARGV[1]).
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Extend pushes the expiry of a lock held with token. False means the lock
// was lost (expired or taken over) and the run no longer owns the job.
func (c *Client) Extend(ctx context.Context, jobID, token string, ttl time.Duration) (bool, error) {
	if err := c.ready(jobID); err != nil {
		return false, err
	}
	n, err := extendScript.Run(ctx, c.rdb, []string{c.Key(jobID)}, token, orDefault(ttl).Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release drops the lock if token still owns it. Releasing a lost lock is not an error.
func (c *Client) Release(ctx context.Context, jobID, token string) error {
	if err := c.ready(jobID); err != nil {
		return err
	}
	return releaseScript.Run(ctx, c.rdb, []string{c.Key(jobID)}, token).Err()
}

func (c *Client) ready(jobID string) error {
	if c == nil || c.rdb == nil {
		return errNotReady
	}
	if strings.TrimSpace(jobID) == "" {
		return errors.New("lock: empty job id")
	}
	return nil
}

func orDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultTTL
	}
	return ttl
}
