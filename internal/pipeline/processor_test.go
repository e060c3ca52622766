package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"avl-svr/internal/codec"
)

func TestCalcFix(t *testing.T) {
	tests := []struct {
		name     string
		sats     int
		lat, lon float64
		want     int
	}{
		{"good", 7, -1.29, 36.82, 1},
		{"few satellites", 3, -1.29, 36.82, 0},
		{"null island", 9, 0, 0, 0},
		{"out of range", 9, 91, 10, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CalcFix(tc.sats, tc.lat, tc.lon); got != tc.want {
				t.Fatalf("CalcFix = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestDecideMsgType(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if DecideMsgType(true, now, now) != 0 {
		t.Error("batched record classified live")
	}
	if DecideMsgType(false, now.Add(-30*time.Second), now) != 1 {
		t.Error("fresh record classified buffered")
	}
	if DecideMsgType(false, now.Add(-5*time.Minute), now) != 0 {
		t.Error("stale record classified live")
	}
}

func sampleRecord(ts time.Time) codec.AVLRecord {
	io := codec.NewIOMap()
	io.Set(codec.NamedKey("Ignition"), codec.Integer(1))
	return codec.AVLRecord{
		Timestamp: uint64(ts.UnixMilli()),
		Priority:  1,
		GPS:       codec.GNSSFix{Lat: -1.29, Lon: 36.82, Satellites: 8, Speed: 40, Heading: 90},
		EventID:   239,
		IO:        io,
	}
}

func TestTrackingProjectsBatch(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	b := Batch{ExternalID: "356307042441013", Codec: codec.Codec8, Records: []codec.AVLRecord{sampleRecord(now)}}

	out := Tracking(b, now)
	if len(out) != 1 {
		t.Fatalf("got %d objects", len(out))
	}
	tr := out[0]
	if tr.IMEI != b.ExternalID || tr.Datetime != "2024-01-01T12:00:00Z" || tr.Spd != 40 || tr.Crs != 90 {
		t.Errorf("tracking = %+v", tr)
	}
	if tr.MsgType != 1 || tr.Fix != 1 {
		t.Errorf("msg_type=%d fix=%d", tr.MsgType, tr.Fix)
	}
	if tr.IO["Ignition"] != uint64(1) {
		t.Errorf("io = %v", tr.IO)
	}

	b.Records = append(b.Records, sampleRecord(now))
	for _, tr := range Tracking(b, now) {
		if tr.MsgType != 0 {
			t.Error("multi-record batch classified live")
		}
	}
}

func TestBatchJSONShape(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	pkt := &codec.Packet{Codec: codec.Codec8Extended, Records: []codec.AVLRecord{sampleRecord(now)}}
	raw, err := json.Marshal(NewBatch("123", pkt))
	if err != nil {
		t.Fatal(err)
	}

	var got struct {
		ExternalID string `json:"external_id"`
		Codec      int    `json:"codec"`
		Batch      []struct {
			TimestampMS uint64         `json:"timestamp_ms"`
			IO          map[string]int `json:"io"`
		} `json:"batch"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	if got.ExternalID != "123" || got.Codec != 0x8E || len(got.Batch) != 1 {
		t.Fatalf("batch = %s", raw)
	}
	if got.Batch[0].TimestampMS != uint64(now.UnixMilli()) || got.Batch[0].IO["Ignition"] != 1 {
		t.Fatalf("record = %s", raw)
	}
}

func TestTelemetry(t *testing.T) {
	rec := sampleRecord(time.Now())
	data := Telemetry(rec)
	if data.Fix != 1 || data.EventID != 239 || data.IO.Len() != 1 {
		t.Fatalf("telemetry = %+v", data)
	}
}
