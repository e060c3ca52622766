package pipeline

import (
	"time"

	"avl-svr/internal/codec"
)

// liveWindow: records older than this are treated as buffered.
const liveWindow = 120 * time.Second

func coordsValid(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	return true
}

func CalcFix(sats int, lat, lon float64) int {
	if sats > 3 && coordsValid(lat, lon) {
		return 1
	}
	return 0
}

func DecideMsgType(isBatch bool, ts, now time.Time) int {
	if isBatch {
		return 0
	}
	if !ts.IsZero() && now.Sub(ts) > liveWindow {
		return 0
	}
	return 1
}

func NewBatch(imei string, pkt *codec.Packet) Batch {
	return Batch{ExternalID: imei, Codec: pkt.Codec, Records: pkt.Records}
}

func Telemetry(rec codec.AVLRecord) TelemetryData {
	return TelemetryData{
		GPS:      rec.GPS,
		IO:       rec.IO,
		Priority: rec.Priority,
		EventID:  rec.EventID,
		Fix:      CalcFix(int(rec.GPS.Satellites), rec.GPS.Lat, rec.GPS.Lon),
	}
}

func BuildTracking(imei string, rec codec.AVLRecord, isBatch bool, now time.Time) *TrackingObject {
	ts := rec.Time()
	sats := int(rec.GPS.Satellites)
	return &TrackingObject{
		IMEI:     imei,
		Datetime: ts.Format(time.RFC3339),
		Lat:      rec.GPS.Lat,
		Lon:      rec.GPS.Lon,
		Alt:      int(rec.GPS.Altitude),
		Spd:      int(rec.GPS.Speed),
		Crs:      int(rec.GPS.Heading),
		Sats:     sats,
		Priority: int(rec.Priority),
		EventID:  int(rec.EventID),
		IO:       rec.IO.Flatten(),
		MsgType:  DecideMsgType(isBatch, ts, now),
		Fix:      CalcFix(sats, rec.GPS.Lat, rec.GPS.Lon),
	}
}

// Tracking projects every record of a batch; more than one record means
// the device is flushing its buffer.
func Tracking(b Batch, now time.Time) []*TrackingObject {
	out := make([]*TrackingObject, 0, len(b.Records))
	isBatch := len(b.Records) > 1
	for _, rec := range b.Records {
		out = append(out, BuildTracking(b.ExternalID, rec, isBatch, now))
	}
	return out
}
