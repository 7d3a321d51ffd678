package messaging

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/pocotu/oficri-areas/modules/areas/domain/events"
)

// Publisher is the subset of a Redis client needed to fan events out.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisRelay forwards committed area events to a Redis pub/sub channel named
// after the event topic, one JSON message per event.
type RedisRelay struct {
	client Publisher
	prefix string
}

func NewRedisRelay(client Publisher, prefix string) *RedisRelay {
	return &RedisRelay{client: client, prefix: prefix}
}

func (r *RedisRelay) Channel(ev events.AreaEventV1) string {
	if r.prefix == "" {
		return ev.Topic()
	}
	return r.prefix + ":" + ev.Topic()
}

// Handle matches eventbus.Handler so the relay can subscribe directly to the bus.
func (r *RedisRelay) Handle(ctx context.Context, ev events.AreaEventV1) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal area event")
	}
	if err := r.client.Publish(ctx, r.Channel(ev), payload).Err(); err != nil {
		return errors.Wrapf(err, "publish %s", ev.EventID)
	}
	return nil
}
