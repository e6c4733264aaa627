// Package notify delivers session-completion events to display consumers so
// they can refresh cached result views.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Completion identifies the (user, subject) pair whose tracking result just
// reached durable storage.
type Completion struct {
	UserID    int64 `json:"user_id"`
	SubjectID int64 `json:"subject_id"`
}

// Bus is the abstraction over different backends.
type Bus interface {
	Publish(ctx context.Context, c Completion) error
	Subscribe(ctx context.Context) (<-chan Completion, error)
}

// InMemory is a minimal channel-backed bus for dev/testing.
type InMemory struct {
	ch chan Completion
}

// NewInMemory creates a bounded in-memory bus.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Completion, size)}
}

// Publish enqueues a completion event.
func (b *InMemory) Publish(ctx context.Context, c Completion) error {
	select {
	case b.ch <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel for consumers.
func (b *InMemory) Subscribe(ctx context.Context) (<-chan Completion, error) {
	out := make(chan Completion)
	go func() {
		defer close(out)
		for {
			select {
			case c := <-b.ch:
				out <- c
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisBus implements the bus over a Redis list.
type RedisBus struct {
	client *redis.Client
	key    string
}

// NewRedisBus builds a bus using LPUSH/BRPOP semantics.
func NewRedisBus(client *redis.Client, key string) *RedisBus {
	if key == "" {
		key = "attention:completions"
	}
	return &RedisBus{client: client, key: key}
}

// Publish enqueues a completion event.
func (b *RedisBus) Publish(ctx context.Context, c Completion) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return b.client.LPush(ctx, b.key, payload).Err()
}

// Subscribe streams completion events using BRPOP.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Completion, error) {
	out := make(chan Completion)
	go func() {
		defer close(out)
		for {
			res, err := b.client.BRPop(ctx, 5*time.Second, b.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) == 2 {
				var c Completion
				if err := json.Unmarshal([]byte(res[1]), &c); err == nil {
					out <- c
				}
			}
		}
	}()
	return out, nil
}
