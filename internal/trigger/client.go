package trigger

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"receipt_ingest_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues the wake signal.
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient creates the trigger client.
func NewClient(cfg config.TriggerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetTriggerQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// NotifyProcessDue enqueues one wake signal with a short delay. Signals
// raised while one is already pending are deduplicated by the uniqueness
// window, so a burst of accepted receipts coalesces into a single scheduler
// pass.
func (c *Client) NotifyProcessDue(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}

	_, err := c.client.EnqueueContext(ctx, NewProcessDueTask(),
		asynq.Queue(c.queue),
		asynq.ProcessIn(2*time.Second),
		asynq.Unique(30*time.Second),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}

// Noop satisfies the trigger contract when no redis is configured. The
// scheduler then relies on its tick alone.
type Noop struct{}

func (Noop) NotifyProcessDue(context.Context) error { return nil }
