package store

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"avl-svr/internal/codec"
	"avl-svr/internal/pipeline"
)

func testBatch(imei string, n int) pipeline.Batch {
	b := pipeline.Batch{ExternalID: imei, Codec: codec.Codec8}
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		io := codec.NewIOMap()
		io.Set(codec.NamedKey("Ignition"), codec.Integer(1))
		io.Set(codec.RawKey(9000), codec.Integer(math.MaxUint64))
		b.Records = append(b.Records, codec.AVLRecord{
			Timestamp: uint64(base.Add(time.Duration(i) * time.Minute).UnixMilli()),
			GPS:       codec.GNSSFix{Lat: 54.6872, Lon: 25.2797, Satellites: 9, Speed: 30 + uint16(i)},
			IO:        io,
		})
	}
	return b
}

func openSQLite(t *testing.T) *SQL {
	t.Helper()
	ctx := context.Background()
	s, err := OpenSQL(ctx, DriverSQLite, filepath.Join(t.TempDir(), "fallback.db"))
	if err != nil {
		t.Fatalf("OpenSQL: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return s
}

func TestSQLStoreBatch(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	if err := s.StoreBatch(ctx, testBatch("356307042441013", 3)); err != nil {
		t.Fatalf("StoreBatch: %v", err)
	}
	// same device again: no second devices row
	if err := s.StoreBatch(ctx, testBatch("356307042441013", 2)); err != nil {
		t.Fatalf("second StoreBatch: %v", err)
	}

	var devices, rows int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&devices); err != nil {
		t.Fatal(err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM telemetry`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if devices != 1 || rows != 5 {
		t.Fatalf("devices=%d telemetry=%d, want 1 and 5", devices, rows)
	}

	var name, data string
	err := s.db.QueryRowContext(ctx,
		`SELECT d.name, t.data FROM telemetry t JOIN devices d ON d.id = t.device_id ORDER BY t.id LIMIT 1`).Scan(&name, &data)
	if err != nil {
		t.Fatal(err)
	}
	if name != "Teltonika 356307042441013" {
		t.Errorf("device name = %q", name)
	}
	var blob struct {
		GPS codec.GNSSFix  `json:"gps"`
		IO  map[string]any `json:"io"`
		Fix int            `json:"fix"`
	}
	if err := json.Unmarshal([]byte(data), &blob); err != nil {
		t.Fatalf("data is not json: %v", err)
	}
	if blob.GPS.Speed != 30 || blob.Fix != 1 || blob.IO["Ignition"] != float64(1) {
		t.Errorf("blob = %+v", blob)
	}
}

func TestSQLStoreBatchRollsBackOnError(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	if _, err := s.db.ExecContext(ctx, `DROP TABLE telemetry`); err != nil {
		t.Fatal(err)
	}
	if err := s.StoreBatch(ctx, testBatch("1", 1)); err == nil {
		t.Fatal("StoreBatch succeeded without telemetry table")
	}
	var devices int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&devices); err != nil {
		t.Fatal(err)
	}
	if devices != 0 {
		t.Fatalf("device row survived rollback: %d", devices)
	}
}

func TestOpenSQLUnknownDriver(t *testing.T) {
	if _, err := OpenSQL(context.Background(), "oracle", "x"); err == nil {
		t.Fatal("want error")
	}
}

func TestRebind(t *testing.T) {
	pg := &SQL{driver: DriverPostgres}
	if got := pg.rebind(`SELECT ? , ?`); got != `SELECT $1 , $2` {
		t.Fatalf("rebind = %s", got)
	}
	lite := &SQL{driver: DriverSQLite}
	if got := lite.rebind(`SELECT ?`); got != `SELECT ?` {
		t.Fatalf("rebind = %s", got)
	}
}

func TestTelemetryDocs(t *testing.T) {
	oid := primitive.NewObjectID()
	docs := telemetryDocs(testBatch("42", 2), oid)
	if len(docs) != 2 {
		t.Fatalf("docs = %d", len(docs))
	}
	doc := docs[0].(bson.M)
	if doc["external_id"] != "42" || doc["device_id"] != oid {
		t.Fatalf("doc = %v", doc)
	}
	data := doc["data"].(bson.M)
	io := data["io"].(bson.D)
	if len(io) != 2 || io[0].Key != "Ignition" || io[0].Value != int64(1) {
		t.Fatalf("io = %v", io)
	}
	if io[1].Key != "9000" || io[1].Value != "18446744073709551615" {
		t.Fatalf("overflowing integer = %v", io[1])
	}

	// the document must be encodable as-is
	if _, err := bson.Marshal(doc); err != nil {
		t.Fatalf("bson.Marshal: %v", err)
	}
}

func TestDeviceKeyAndNop(t *testing.T) {
	if k := deviceKey("123", "iccid"); k != "dev:123:iccid" {
		t.Fatalf("key = %s", k)
	}
	var st DeviceState = Nop{}
	if err := st.TouchSession(context.Background(), "1", "x", time.Now()); err != nil {
		t.Fatal(err)
	}
}
