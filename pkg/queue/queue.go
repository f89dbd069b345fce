// Package queue publishes stored news records to a redis list and consumes them back.
// Producers LPUSH, consumers BRPOP, so the list behaves as a FIFO queue.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/redis/go-redis/v9"

	"github.com/borsawire/borsawire/pkg/config"
	"github.com/borsawire/borsawire/pkg/domain"
)

// pollTimeout bounds a single blocking pop so Listen notices cancellation
const pollTimeout = time.Second

// NewRedis makes a redis client from cfg and checks it is reachable.
// Addr may be a plain host:port or a redis:// URL.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	var opts *redis.Options
	if strings.HasPrefix(cfg.Addr, "redis://") || strings.HasPrefix(cfg.Addr, "rediss://") {
		var err error
		if opts, err = redis.ParseURL(cfg.Addr); err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
	} else {
		opts = &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

// Publisher pushes records onto a redis list
type Publisher struct {
	client redis.Cmdable
	queue  string
}

// NewPublisher makes a publisher writing to the named list
func NewPublisher(client redis.Cmdable, queue string) *Publisher {
	return &Publisher{client: client, queue: queue}
}

// Publish pushes rec as a JSON message
func (p *Publisher) Publish(ctx context.Context, rec domain.NewsRecord) error {
	data, err := json.Marshal(rec.ToMessage())
	if err != nil {
		return fmt.Errorf("marshal %s: %w", rec.URL, err)
	}
	if err := p.client.LPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("push %s to %s: %w", rec.URL, p.queue, err)
	}
	return nil
}

// PublishBatch pushes all recs in one MULTI/EXEC transaction, preserving their order
// for consumers. Either all records are queued or none.
func (p *Publisher) PublishBatch(ctx context.Context, recs []domain.NewsRecord) error {
	if len(recs) == 0 {
		return nil
	}
	pipe := p.client.TxPipeline()
	for _, rec := range recs {
		data, err := json.Marshal(rec.ToMessage())
		if err != nil {
			return fmt.Errorf("marshal %s: %w", rec.URL, err)
		}
		pipe.LPush(ctx, p.queue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push %d records to %s: %w", len(recs), p.queue, err)
	}
	return nil
}

// Delivery is one message taken from the queue. Record is nil when the payload
// could not be decoded, Raw always holds the payload and Err the decode error.
type Delivery struct {
	Record *domain.NewsRecord
	Raw    string
	Err    error
}

// Consumer pops messages from a redis list
type Consumer struct {
	client redis.Cmdable
	queue  string
}

// NewConsumer makes a consumer reading from the named list
func NewConsumer(client redis.Cmdable, queue string) *Consumer {
	return &Consumer{client: client, queue: queue}
}

// Listen blocks, calling fn for every message until ctx is canceled.
// Broker errors are logged and retried after a pause.
func (c *Consumer) Listen(ctx context.Context, fn func(Delivery)) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res, err := c.client.BRPop(ctx, pollTimeout, c.queue).Result()
		if errors.Is(err, redis.Nil) {
			continue // poll timed out, queue is empty
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[WARN] pop from %s: %v", c.queue, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollTimeout):
			}
			continue
		}

		// BRPOP replies with the list name followed by the value
		if len(res) < 2 {
			continue
		}
		fn(Decode(res[1]))
	}
}

// Decode turns a queue payload into a delivery, keeping the raw payload on failure
func Decode(payload string) Delivery {
	d := Delivery{Raw: payload}
	var msg domain.Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		log.Printf("[WARN] can't decode message, passing raw payload: %v", err)
		d.Err = fmt.Errorf("decode message: %w", err)
		return d
	}
	rec, err := msg.Record()
	if err != nil {
		log.Printf("[WARN] bad message %q, passing raw payload: %v", msg.URL, err)
		d.Err = err
		return d
	}
	d.Record = &rec
	return d
}
