package store

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"avl-svr/internal/codec"
	"avl-svr/internal/pipeline"
)

type Mongo struct {
	client    *mongo.Client
	devices   *mongo.Collection
	telemetry *mongo.Collection
}

func ConnectMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return NewMongo(client, client.Database(database)), nil
}

// NewMongo uses the devices and telemetry collections of db.
func NewMongo(client *mongo.Client, db *mongo.Database) *Mongo {
	return &Mongo{
		client:    client,
		devices:   db.Collection("devices"),
		telemetry: db.Collection("telemetry"),
	}
}

func (m *Mongo) Close(ctx context.Context) error { return m.client.Disconnect(ctx) }

// StoreBatch resolves or creates the device document, then inserts one
// telemetry document per record referencing its _id.
func (m *Mongo) StoreBatch(ctx context.Context, b pipeline.Batch) error {
	var dev struct {
		ID any `bson:"_id"`
	}
	err := m.devices.FindOneAndUpdate(ctx,
		bson.M{"external_id": b.ExternalID},
		bson.M{"$setOnInsert": bson.M{
			"external_id": b.ExternalID,
			"name":        "Teltonika " + b.ExternalID,
			"created_at":  time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&dev)
	if err != nil {
		return fmt.Errorf("upsert device %s: %w", b.ExternalID, err)
	}

	docs := telemetryDocs(b, dev.ID)
	if len(docs) == 0 {
		return nil
	}
	if _, err := m.telemetry.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert telemetry %s: %w", b.ExternalID, err)
	}
	return nil
}

func telemetryDocs(b pipeline.Batch, deviceID any) []any {
	docs := make([]any, 0, len(b.Records))
	for _, rec := range b.Records {
		t := pipeline.Telemetry(rec)
		docs = append(docs, bson.M{
			"device_id":   deviceID,
			"external_id": b.ExternalID,
			"ts":          rec.Time(),
			"data": bson.M{
				"gps": bson.M{
					"lat":        t.GPS.Lat,
					"lon":        t.GPS.Lon,
					"altitude":   int32(t.GPS.Altitude),
					"heading":    int32(t.GPS.Heading),
					"satellites": int32(t.GPS.Satellites),
					"speed_kph":  int32(t.GPS.Speed),
				},
				"io":       bsonIO(t.IO),
				"priority": int32(t.Priority),
				"event_id": int32(t.EventID),
				"fix":      int32(t.Fix),
			},
		})
	}
	return docs
}

// bsonIO keeps integers as int64; values past MaxInt64 become decimal strings.
func bsonIO(m *codec.IOMap) bson.D {
	out := make(bson.D, 0, m.Len())
	for _, e := range m.Entries() {
		var v any
		switch e.Value.Kind() {
		case codec.KindInteger:
			u, _ := e.Value.Uint()
			if u > math.MaxInt64 {
				v = strconv.FormatUint(u, 10)
			} else {
				v = int64(u)
			}
		case codec.KindBool:
			v, _ = e.Value.Bool()
		default:
			v, _ = e.Value.Str()
		}
		out = append(out, bson.E{Key: e.Key.String(), Value: v})
	}
	return out
}
