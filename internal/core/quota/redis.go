package quota

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adrianaguero/chatgate/internal/core"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces quota keys.
const DefaultRedisPrefix = "chatgate:quota"

const upstashRedisPort = "6379"

// acquireScript trims expired entries, admits when under the limit and
// returns {allowed, count, oldest score}. It runs atomically inside Redis.
var acquireScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[1])
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, ARGV[2], ARGV[5])
  count = count + 1
  allowed = 1
end
if count > 0 then
  redis.call('PEXPIRE', key, ARGV[3])
end

local oldest = 0
local first = redis.call('ZRANGE', key, '0', '0', 'WITHSCORES')
if first[2] then
  oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// Redis keeps one sorted set per identifier, scored by admission time in
// milliseconds. Members are random UUIDs so simultaneous admissions never collide.
type Redis struct {
	client *redis.Client
	prefix string
	window core.QuotaWindow
	now    func() time.Time
}

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Prefix string
	Window core.QuotaWindow
	Now    func() time.Time
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, opts RedisOptions) *Redis {
	prefix := strings.TrimSuffix(strings.TrimSpace(opts.Prefix), ":")
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Redis{
		client: client,
		prefix: prefix,
		window: opts.Window.Normalize(),
		now:    now,
	}
}

// OpenRedis builds a client from a redis:// URL or an Upstash REST URL plus token.
// No connection is made until the first command.
func OpenRedis(rawURL, token string, opts RedisOptions) (*Redis, error) {
	options, err := ParseRedisURL(rawURL, token)
	if err != nil {
		return nil, Wrap("redis", "open", err)
	}
	return NewRedis(redis.NewClient(options), opts), nil
}

// ParseRedisURL accepts redis:// and rediss:// URLs. An https:// Upstash REST
// endpoint is mapped onto its TLS Redis endpoint authenticated with token.
// token also fills in a missing password.
func ParseRedisURL(rawURL, token string) (*redis.Options, error) {
	rawURL = strings.TrimSpace(rawURL)
	token = strings.TrimSpace(token)
	if rawURL == "" {
		return nil, errors.New("redis url is required")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		if token == "" {
			return nil, errors.New("a token is required for REST-style redis urls")
		}
		host := parsed.Hostname()
		if host == "" {
			return nil, fmt.Errorf("redis url %q has no host", rawURL)
		}
		converted := url.URL{
			Scheme: "rediss",
			User:   url.UserPassword("default", token),
			Host:   net.JoinHostPort(host, upstashRedisPort),
		}
		rawURL = converted.String()
	}

	options, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if options.Password == "" && token != "" {
		options.Password = token
	}
	return options, nil
}

func (r *Redis) key(identifier string) string {
	return r.prefix + ":" + identifier
}

func (r *Redis) TryAcquire(ctx context.Context, identifier string) (core.QuotaDecision, error) {
	id, err := NormalizeIdentifier(identifier)
	if err != nil {
		return core.QuotaDecision{}, Wrap("redis", "acquire", err)
	}

	nowMs := r.now().UnixMilli()
	windowMs := r.window.Duration.Milliseconds()
	values, err := acquireScript.Run(ctx, r.client,
		[]string{r.key(id)},
		strconv.FormatInt(nowMs-windowMs, 10),
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(windowMs, 10),
		strconv.Itoa(r.window.Limit),
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return core.QuotaDecision{}, Wrap("redis", "acquire", err)
	}
	if len(values) != 3 {
		return core.QuotaDecision{}, Wrap("redis", "acquire", fmt.Errorf("unexpected script reply of %d values", len(values)))
	}

	return Decide(r.window, values[0] == 1, int(values[1]), values[2]), nil
}

func (r *Redis) Inspect(ctx context.Context, identifier string) (core.QuotaDecision, error) {
	id, err := NormalizeIdentifier(identifier)
	if err != nil {
		return core.QuotaDecision{}, Wrap("redis", "inspect", err)
	}

	key := r.key(id)
	cutoff := "(" + strconv.FormatInt(r.now().UnixMilli()-r.window.Duration.Milliseconds(), 10)

	p := r.client.Pipeline()
	count := p.ZCount(ctx, key, cutoff, "+inf")
	first := p.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: cutoff, Max: "+inf", Count: 1})
	if _, err := p.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return core.QuotaDecision{}, Wrap("redis", "inspect", err)
	}

	n, err := count.Result()
	if err != nil {
		return core.QuotaDecision{}, Wrap("redis", "inspect", err)
	}
	var oldestMs int64
	if items, err := first.Result(); err == nil && len(items) > 0 {
		oldestMs = int64(items[0].Score)
	}

	return Decide(r.window, int(n) < r.window.Limit, int(n), oldestMs), nil
}

func (r *Redis) Reset(ctx context.Context, identifier string) error {
	id, err := NormalizeIdentifier(identifier)
	if err != nil {
		return Wrap("redis", "reset", err)
	}
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return Wrap("redis", "reset", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return Wrap("redis", "ping", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
