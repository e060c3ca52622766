// Package link pushes accepted tracking records and device events to a
// live consumer: a TCP proxy speaking NDJSON, Redis pub/sub or MQTT.
package link

import (
	"context"
	"encoding/json"

	"avl-svr/internal/pipeline"
)

type Publisher interface {
	Tracking(ctx context.Context, tr *pipeline.TrackingObject) error
	Device(ctx context.Context, info DeviceInfo) error
	Close() error
}

// Nop drops everything; used when no live feed is configured.
type Nop struct{}

func (Nop) Tracking(context.Context, *pipeline.TrackingObject) error { return nil }
func (Nop) Device(context.Context, DeviceInfo) error { return nil }
func (Nop) Close() error { return nil }

func encodeTracking(tr *pipeline.TrackingObject) ([]byte, error) {
	return json.Marshal(tr)
}
