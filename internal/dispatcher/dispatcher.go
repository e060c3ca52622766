package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"avl-svr/internal/codec"
	"avl-svr/internal/link"
	"avl-svr/internal/observability"
	"avl-svr/internal/pipeline"
	"avl-svr/internal/store"
)

var ErrDispatchFailed = errors.New("dispatch failed")

// Ingester is the primary delivery path (HTTP API or gRPC forwarder).
type Ingester interface {
	Ingest(ctx context.Context, b pipeline.Batch) error
}

// FallbackStore persists a batch when the primary path fails.
type FallbackStore interface {
	StoreBatch(ctx context.Context, b pipeline.Batch) error
}

// Result is what the session ACKs.
type Result struct {
	Accepted uint32
}

type Options struct {
	Primary     Ingester
	PrimaryName string
	Fallback    FallbackStore // nil: no fallback
	Feed        link.Publisher
	State       store.DeviceState
	Timeout     time.Duration
	Logger      *slog.Logger
}

type Dispatcher struct {
	primary     Ingester
	primaryName string
	fallback    FallbackStore
	feed        link.Publisher
	state       store.DeviceState
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time

	iccids sync.Map // imei -> último ICCID guardado
}

func New(o Options) *Dispatcher {
	d := &Dispatcher{
		primary:     o.Primary,
		primaryName: o.PrimaryName,
		fallback:    o.Fallback,
		feed:        o.Feed,
		state:       o.State,
		timeout:     o.Timeout,
		logger:      o.Logger,
		now:         time.Now,
	}
	if d.primaryName == "" {
		d.primaryName = "primary"
	}
	if d.feed == nil {
		d.feed = link.Nop{}
	}
	if d.state == nil {
		d.state = store.Nop{}
	}
	if d.timeout <= 0 {
		d.timeout = 5 * time.Second
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d
}

// Dispatch delivers a decoded packet: primary first, then the fallback
// store. Accepted is the record count when either path succeeds and 0
// otherwise, in which case the error wraps ErrDispatchFailed.
func (d *Dispatcher) Dispatch(ctx context.Context, imei string, pkt *codec.Packet) (Result, error) {
	if pkt == nil || len(pkt.Records) == 0 {
		return Result{}, nil
	}
	b := pipeline.NewBatch(imei, pkt)
	accepted := Result{Accepted: uint32(len(b.Records))}
	log := d.logger.With("imei", imei, "records", len(b.Records))

	perr := d.withTimeout(ctx, func(c context.Context) error { return d.primary.Ingest(c, b) })
	if perr == nil {
		observability.Dispatches.WithLabelValues(d.primaryName, "ok").Inc()
		d.afterAccept(ctx, b)
		return accepted, nil
	}
	observability.Dispatches.WithLabelValues(d.primaryName, "error").Inc()
	log.Warn("primary ingest failed", "path", d.primaryName, "err", perr)

	if d.fallback == nil {
		return Result{}, fmt.Errorf("%w: %s: %v; no fallback configured", ErrDispatchFailed, d.primaryName, perr)
	}

	ferr := d.withTimeout(ctx, func(c context.Context) error { return d.fallback.StoreBatch(c, b) })
	if ferr == nil {
		observability.Dispatches.WithLabelValues("fallback", "ok").Inc()
		log.Info("batch stored in fallback")
		d.afterAccept(ctx, b)
		return accepted, nil
	}
	observability.Dispatches.WithLabelValues("fallback", "error").Inc()
	return Result{}, fmt.Errorf("%w: %s: %v; fallback: %v", ErrDispatchFailed, d.primaryName, perr, ferr)
}

func (d *Dispatcher) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	c, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return fn(c)
}

// afterAccept runs the best-effort side effects of an accepted batch.
func (d *Dispatcher) afterAccept(ctx context.Context, b pipeline.Batch) {
	d.rememberICCID(ctx, b)

	for _, tr := range pipeline.Tracking(b, d.now()) {
		err := d.withTimeout(ctx, func(c context.Context) error { return d.feed.Tracking(c, tr) })
		if err != nil {
			observability.PublishErrors.Inc()
			d.logger.Debug("live feed publish failed", "imei", b.ExternalID, "err", err)
			return
		}
	}
}
