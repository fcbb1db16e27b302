package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisKeyPrefix namespaces pacing slots in Redis.
const RedisKeyPrefix = "dc:pacer:"

// minPoll bounds how often a waiting process re-checks a held slot.
const minPoll = 10 * time.Millisecond

// RedisPacer waits the fixed delay locally, then claims a slot shared by
// every process pacing the same key. A slot is held for Delay after it is
// claimed, so two claims are never closer than Delay.
type RedisPacer struct {
	redis  *redis.Client
	key    string
	owner  string // identifies this pacer in the slot value
	delay  time.Duration
	logger zerolog.Logger
}

// NewRedisPacer creates a pacer sharing slots under key.
func NewRedisPacer(redisClient *redis.Client, key string, delay time.Duration, logger zerolog.Logger) (*RedisPacer, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if key == "" {
		return nil, fmt.Errorf("pacer key is required")
	}
	if delay <= 0 {
		return nil, fmt.Errorf("delay must be positive (got %s)", delay)
	}

	host, _ := os.Hostname()
	return &RedisPacer{
		redis:  redisClient,
		key:    key,
		owner:  host + ":" + strconv.Itoa(os.Getpid()) + ":" + uuid.NewString(),
		delay:  delay,
		logger: logger,
	}, nil
}

// KeyForAPIKey derives the slot key for an API key without storing the key itself.
func KeyForAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return RedisKeyPrefix + hex.EncodeToString(sum[:8])
}

// Key returns the Redis key holding the slot.
func (p *RedisPacer) Key() string {
	return p.key
}

// Wait implements Pacer.
func (p *RedisPacer) Wait(ctx context.Context) error {
	start := time.Now()
	defer func() {
		pacerWaitSeconds.WithLabelValues("redis").Observe(time.Since(start).Seconds())
	}()

	if err := sleep(ctx, p.delay); err != nil {
		return err
	}
	return p.Acquire(ctx)
}

// claimScript claims the slot or, when it is held, reports the holder and
// the remaining hold time in one round trip.
var claimScript = redis.NewScript(`
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
	return {1, ARGV[1], tonumber(ARGV[2])}
end
return {0, redis.call("GET", KEYS[1]) or "", redis.call("PTTL", KEYS[1])}
`)

// claim is one attempt at the shared slot.
type claim struct {
	ok     bool
	holder string
	ttl    time.Duration
}

func (p *RedisPacer) claim(ctx context.Context) (claim, error) {
	res, err := claimScript.Run(ctx, p.redis, []string{p.key}, p.owner, p.delay.Milliseconds()).Slice()
	if err != nil {
		return claim{}, fmt.Errorf("claim pacing slot: %w", err)
	}
	if len(res) != 3 {
		return claim{}, fmt.Errorf("claim pacing slot: unexpected reply %v", res)
	}
	ok, _ := res[0].(int64)
	holder, _ := res[1].(string)
	ttl, _ := res[2].(int64)
	return claim{ok: ok == 1, holder: holder, ttl: time.Duration(ttl) * time.Millisecond}, nil
}

// Acquire blocks until this process holds the shared slot. The slot is
// never released early; it expires after Delay.
func (p *RedisPacer) Acquire(ctx context.Context) error {
	for {
		c, err := p.claim(ctx)
		if err != nil {
			return err
		}
		if c.ok {
			p.logger.Debug().Str("key", p.key).Msg("Pacing slot claimed")
			return nil
		}

		// PTTL reports a key without expiry as -1.
		if c.ttl == -time.Millisecond {
			return fmt.Errorf("pacing slot %s held by %q has no expiry", p.key, c.holder)
		}
		remaining := c.ttl
		if remaining < minPoll {
			remaining = minPoll
		}

		p.logger.Debug().
			Str("key", p.key).
			Str("held_by", c.holder).
			Dur("wait", remaining).
			Msg("Pacing slot held by another pacer")

		if err := sleep(ctx, remaining); err != nil {
			return err
		}
	}
}
