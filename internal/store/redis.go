package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeviceState remembers per-device facts seen on the TCP side.
type DeviceState interface {
	TouchSession(ctx context.Context, imei, remote string, at time.Time) error
	SaveICCID(ctx context.Context, imei, iccid string) error
}

// stateTTL: a device silent for this long drops out of the state store.
const stateTTL = 24 * time.Hour

type Redis struct {
	rdb *redis.Client
}

func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

// Client exposes the connection so the live feed can share it.
func (r *Redis) Client() *redis.Client { return r.rdb }

func (r *Redis) Close() error { return r.rdb.Close() }

func deviceKey(imei, field string) string { return "dev:" + imei + ":" + field }

func (r *Redis) TouchSession(ctx context.Context, imei, remote string, at time.Time) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, deviceKey(imei, "last_seen"), strconv.FormatInt(at.UnixMilli(), 10), stateTTL)
		p.Set(ctx, deviceKey(imei, "remote"), remote, stateTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis touch %s: %w", imei, err)
	}
	return nil
}

func (r *Redis) SaveICCID(ctx context.Context, imei, iccid string) error {
	if err := r.rdb.Set(ctx, deviceKey(imei, "iccid"), iccid, 0).Err(); err != nil {
		return fmt.Errorf("redis set iccid %s: %w", imei, err)
	}
	return nil
}

// Nop is used when no state store is configured.
type Nop struct{}

func (Nop) TouchSession(context.Context, string, string, time.Time) error { return nil }
func (Nop) SaveICCID(context.Context, string, string) error { return nil }
