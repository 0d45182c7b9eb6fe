package redis

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// Cmdable is a type alias for redis.Cmdable. Adapters accept this interface
// instead of importing go-redis directly, keeping the library confined to
// internal/redis/.
type Cmdable = redis.Cmdable

// Stream command argument and result types used by the OTP queue adapter.
type (
	XAddArgs       = redis.XAddArgs
	XReadGroupArgs = redis.XReadGroupArgs
	XStream        = redis.XStream
	XMessage       = redis.XMessage
)

// Nil is the go-redis sentinel returned when a command finds no data,
// including an XREADGROUP that times out with no messages.
const Nil = redis.Nil

// Config holds the parameters needed to connect to a Redis instance.
type Config struct {
	Addr         string
	Password     string
	DB           int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Client wraps a go-redis client. The RDB field satisfies the Cmdable
// interface and is the handle the OTP queue adapter uses for stream
// operations.
type Client struct {
	RDB *redis.Client
}

// NewClient creates a new Redis client configured from cfg.
//
// Note: blocking stream reads (XREADGROUP BLOCK) are issued with their own
// per-call deadline by the queue adapter; ReadTimeout only bounds
// non-blocking commands.
func NewClient(cfg Config) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return &Client{RDB: rdb}
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	return c.RDB.Close()
}
