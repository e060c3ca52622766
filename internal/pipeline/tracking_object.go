package pipeline

import "avl-svr/internal/codec"

// TrackingObject is the flat per-record view pushed to the live feed.
type TrackingObject struct {
	IMEI     string `json:"imei"`
	Datetime string `json:"dt"`

	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Alt  int     `json:"alt"`
	Spd  int     `json:"spd"`
	Crs  int     `json:"crs"`
	Sats int     `json:"sats"`

	Priority int            `json:"priority"`
	EventID  int            `json:"event_id"`
	IO       map[string]any `json:"io"`

	MsgType int `json:"msg_type"` // 1=live, 0=buffer
	Fix     int `json:"fix"`      // 1 si sats>3 y coords válidas
}

// Batch is one decoded payload addressed to a device.
type Batch struct {
	ExternalID string            `json:"external_id"`
	Codec      codec.Codec       `json:"codec"`
	Records    []codec.AVLRecord `json:"batch"`
}

// TelemetryData is the opaque blob stored per record by the fallback stores.
type TelemetryData struct {
	GPS      codec.GNSSFix `json:"gps"`
	IO       *codec.IOMap  `json:"io"`
	Priority uint8         `json:"priority"`
	EventID  uint16        `json:"event_id"`
	Fix      int           `json:"fix"`
}
