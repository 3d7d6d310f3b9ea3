package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/events"
)

const (
	keySession    = "session:%s"
	keyResetToken = "reset:%s"
	keyRateLimit  = "rl:%s:%s"
	keyClaim      = "claim:%s"
	channelPrefix = "streamania:"
	subBuffer     = 256
)

type RedisClient struct {
	client *redis.Client
	log    *logrus.Logger
}

// NewRedisClient creates a new Redis client
func NewRedisClient(addr, password string, db int, log *logrus.Logger) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		log:    log,
	}, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Sessions

func (r *RedisClient) CreateSession(ctx context.Context, sessionID string, userID uuid.UUID, ttl time.Duration) error {
	return r.client.Set(ctx, fmt.Sprintf(keySession, sessionID), userID.String(), ttl).Err()
}

func (r *RedisClient) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Exists(ctx, fmt.Sprintf(keySession, sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisClient) DeleteSession(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, fmt.Sprintf(keySession, sessionID)).Err()
}

// Password reset tokens

func (r *RedisClient) SaveResetToken(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	return r.client.Set(ctx, fmt.Sprintf(keyResetToken, token), userID.String(), ttl).Err()
}

// ConsumeResetToken reads and deletes the token in one step
func (r *RedisClient) ConsumeResetToken(ctx context.Context, token string) (uuid.UUID, error) {
	v, err := r.client.GetDel(ctx, fmt.Sprintf(keyResetToken, token)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, apperr.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(v)
}

// Claim sets key only if it is absent. The first caller across all
// instances gets true until ttl passes.
func (r *RedisClient) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, fmt.Sprintf(keyClaim, key), "1", ttl).Result()
}

// Pub/Sub

// Publish sends payload as an events.Event on the topic's channel
func (r *RedisClient) Publish(ctx context.Context, topic string, payload any) error {
	ev, err := events.NewEvent(topic, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channelPrefix+topic, data).Err()
}

// Subscribe forwards events for topics until ctx is cancelled
func (r *RedisClient) Subscribe(ctx context.Context, topics ...string) (<-chan events.Event, error) {
	channels := make([]string, len(topics))
	for i, t := range topics {
		channels[i] = channelPrefix + t
	}

	ps := r.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan events.Event, subBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev events.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.log.WithError(err).WithField("channel", msg.Channel).Warn("dropping malformed event")
					continue
				}
				if ev.Topic == "" {
					ev.Topic = strings.TrimPrefix(msg.Channel, channelPrefix)
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// AllowAction implements a Redis-backed token-bucket limiter per key (user+action).
// Returns true if the action is allowed, false if rate-limited.
func (r *RedisClient) AllowAction(ctx context.Context, userID uuid.UUID, action string, rate int, burst int) (bool, error) {
	key := fmt.Sprintf(keyRateLimit, action, userID.String())
	script := `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local vals = redis.call('HMGET', key, 'tokens', 'last')
local tokens = tonumber(vals[1])
local last = tonumber(vals[2])
if tokens == nil then tokens = burst end
if last == nil then last = now end
local delta = math.max(0, now - last)
local new_tokens = math.min(burst, tokens + (delta * rate / 1000))
local allowed = 0
if new_tokens >= 1 then
	new_tokens = new_tokens - 1
	allowed = 1
end
redis.call('HSET', key, 'tokens', new_tokens, 'last', now)
redis.call('PEXPIRE', key, 60000)
return allowed
`

	now := time.Now().UnixMilli()
	res, err := r.client.Eval(ctx, script, []string{key}, rate, burst, now).Result()
	if err != nil {
		return false, err
	}
	switch v := res.(type) {
	case int64:
		return v == 1, nil
	default:
		return false, fmt.Errorf("unexpected result from rate limiter: %T %v", res, res)
	}
}
