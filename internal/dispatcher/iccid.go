package dispatcher

import (
	"context"

	"avl-svr/internal/codec/fmxxx"
	"avl-svr/internal/link"
	"avl-svr/internal/observability"
	"avl-svr/internal/pipeline"
)

// minICCIDLen: shorter values are partial reads, not a SIM id.
const minICCIDLen = 18

// batchICCID returns the newest complete ICCID carried by the batch.
func batchICCID(b pipeline.Batch) string {
	for i := len(b.Records) - 1; i >= 0; i-- {
		v, ok := b.Records[i].IO.Get(fmxxx.CCIDKey)
		if !ok {
			continue
		}
		if s := v.String(); len(s) >= minICCIDLen {
			return s
		}
	}
	return ""
}

// rememberICCID stores a newly seen ICCID and announces it on the live feed.
func (d *Dispatcher) rememberICCID(ctx context.Context, b pipeline.Batch) {
	iccid := batchICCID(b)
	if iccid == "" {
		return
	}
	if prev, ok := d.iccids.Load(b.ExternalID); ok && prev.(string) == iccid {
		return
	}

	err := d.withTimeout(ctx, func(c context.Context) error { return d.state.SaveICCID(c, b.ExternalID, iccid) })
	if err != nil {
		observability.DeviceStateErrors.Inc()
		d.logger.Warn("save iccid failed", "imei", b.ExternalID, "err", err)
		return
	}
	d.iccids.Store(b.ExternalID, iccid)
	d.logger.Info("iccid stored", "imei", b.ExternalID, "iccid", iccid)

	info := link.DeviceInfo{IMEI: b.ExternalID, ICCID: iccid, State: link.DeviceStateUpdate}
	if err := d.withTimeout(ctx, func(c context.Context) error { return d.feed.Device(c, info) }); err != nil {
		observability.PublishErrors.Inc()
	}
}
