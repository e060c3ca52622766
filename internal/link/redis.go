package link

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"avl-svr/internal/pipeline"
)

// Redis publishes tracking JSON on channel and device events on
// channel + ":devices". The client belongs to the caller.
type Redis struct {
	rdb     *redis.Client
	channel string
}

func NewRedis(rdb *redis.Client, channel string) *Redis {
	return &Redis{rdb: rdb, channel: channel}
}

func (r *Redis) Tracking(ctx context.Context, tr *pipeline.TrackingObject) error {
	b, err := encodeTracking(tr)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, b).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", r.channel, err)
	}
	return nil
}

func (r *Redis) Device(ctx context.Context, info DeviceInfo) error {
	b, err := encodeDevice(info)
	if err != nil {
		return err
	}
	ch := r.channel + ":devices"
	if err := r.rdb.Publish(ctx, ch, b).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", ch, err)
	}
	return nil
}

func (r *Redis) Close() error { return nil }
