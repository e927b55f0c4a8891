// internal/writer/redis/publisher.go
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Config selects the server and channel. History > 0 also keeps a capped list per identity.
type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string

	// History > 0 keeps the last History messages in a list per identity.
	History int
}

// cmdable is the subset of *redis.Client the publisher uses.
type cmdable interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	Close() error
}

// Publisher pushes periodic messages to Redis pub/sub.
type Publisher struct {
	client cmdable
	cfg    Config
	log    logrus.FieldLogger
}

// NewPublisher connects and pings the server.
func NewPublisher(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Publisher, error) {
	if cfg.Addr == "" {
		return nil, errors.New("writer redis: addr required")
	}
	if cfg.Channel == "" {
		return nil, errors.New("writer redis: channel required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("writer redis: connect %s: %w", cfg.Addr, err)
	}

	log.WithField("addr", cfg.Addr).Info("redis connected")
	return newPublisher(client, cfg, log), nil
}

func newPublisher(client cmdable, cfg Config, log logrus.FieldLogger) *Publisher {
	return &Publisher{client: client, cfg: cfg, log: log}
}

// HistoryKey is the list holding recent messages for one supply.
func HistoryKey(identity string) string {
	if identity == "" {
		identity = "unknown"
	}
	return fmt.Sprintf("tenma:%s:state", identity)
}

// Publish sends payload on the channel and, with history enabled,
// records it in the capped per-identity list.
func (p *Publisher) Publish(ctx context.Context, identity string, payload []byte) error {
	if err := p.client.Publish(ctx, p.cfg.Channel, payload).Err(); err != nil {
		return fmt.Errorf("writer redis: publish: %w", err)
	}

	if p.cfg.History <= 0 {
		return nil
	}

	key := HistoryKey(identity)
	if err := p.client.LPush(ctx, key, payload).Err(); err != nil {
		p.log.WithFields(logrus.Fields{"key": key, "err": err}).Warn("redis history push failed")
		return nil
	}
	if err := p.client.LTrim(ctx, key, 0, int64(p.cfg.History-1)).Err(); err != nil {
		p.log.WithFields(logrus.Fields{"key": key, "err": err}).Warn("redis history trim failed")
	}
	return nil
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
