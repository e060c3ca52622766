package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"avl-svr/internal/codec"
	"avl-svr/internal/codec/fmxxx"
	"avl-svr/internal/link"
	"avl-svr/internal/pipeline"
	"avl-svr/internal/store"
)

type fakeIngester struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeIngester) Ingest(context.Context, pipeline.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

type fakeStore struct {
	err     error
	batches []pipeline.Batch
}

func (f *fakeStore) StoreBatch(_ context.Context, b pipeline.Batch) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, b)
	return nil
}

type fakeFeed struct {
	link.Nop
	tracking []*pipeline.TrackingObject
	devices  []link.DeviceInfo
}

func (f *fakeFeed) Tracking(_ context.Context, tr *pipeline.TrackingObject) error {
	f.tracking = append(f.tracking, tr)
	return nil
}

func (f *fakeFeed) Device(_ context.Context, info link.DeviceInfo) error {
	f.devices = append(f.devices, info)
	return nil
}

type fakeState struct {
	store.Nop
	iccids map[string]string
}

func (f *fakeState) SaveICCID(_ context.Context, imei, iccid string) error {
	f.iccids[imei] = iccid
	return nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewJSONHandler(io.Discard, nil)) }

func packet(n int) *codec.Packet {
	pkt := &codec.Packet{Codec: codec.Codec8, Declared: uint8(n), Trailing: uint8(n)}
	for i := 0; i < n; i++ {
		m := codec.NewIOMap()
		m.Set(codec.NamedKey("Ignition"), codec.Integer(1))
		pkt.Records = append(pkt.Records, codec.AVLRecord{
			Timestamp: uint64(time.Date(2024, 2, 1, 0, i, 0, 0, time.UTC).UnixMilli()),
			GPS:       codec.GNSSFix{Lat: 10, Lon: 20, Satellites: 5},
			IO:        m,
		})
	}
	return pkt
}

func TestDispatchPrimarySuccess(t *testing.T) {
	primary := &fakeIngester{}
	fallback := &fakeStore{}
	feed := &fakeFeed{}
	d := New(Options{Primary: primary, Fallback: fallback, Feed: feed, Logger: quietLogger()})

	res, err := d.Dispatch(context.Background(), "356307042441013", packet(3))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Accepted != 3 {
		t.Fatalf("Accepted = %d, want 3", res.Accepted)
	}
	if len(fallback.batches) != 0 {
		t.Fatal("fallback used although primary succeeded")
	}
	if len(feed.tracking) != 3 || feed.tracking[0].IMEI != "356307042441013" {
		t.Fatalf("feed got %d tracking objects", len(feed.tracking))
	}
}

func TestDispatchFallsBackWhenPrimaryFails(t *testing.T) {
	primary := &fakeIngester{err: errors.New("connection refused")}
	fallback := &fakeStore{}
	d := New(Options{Primary: primary, Fallback: fallback, Logger: quietLogger()})

	res, err := d.Dispatch(context.Background(), "1", packet(2))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Accepted != 2 {
		t.Fatalf("Accepted = %d, want 2", res.Accepted)
	}
	if len(fallback.batches) != 1 || len(fallback.batches[0].Records) != 2 || fallback.batches[0].ExternalID != "1" {
		t.Fatalf("fallback batches = %+v", fallback.batches)
	}
}

func TestDispatchBothPathsFail(t *testing.T) {
	d := New(Options{
		Primary:  &fakeIngester{err: errors.New("down")},
		Fallback: &fakeStore{err: errors.New("disk full")},
		Logger:   quietLogger(),
	})
	res, err := d.Dispatch(context.Background(), "1", packet(1))
	if !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("err = %v, want ErrDispatchFailed", err)
	}
	if res.Accepted != 0 {
		t.Fatalf("Accepted = %d, want 0", res.Accepted)
	}
}

func TestDispatchWithoutFallback(t *testing.T) {
	d := New(Options{Primary: &fakeIngester{err: errors.New("down")}, Logger: quietLogger()})
	res, err := d.Dispatch(context.Background(), "1", packet(1))
	if !errors.Is(err, ErrDispatchFailed) || res.Accepted != 0 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestDispatchEmptyPacket(t *testing.T) {
	primary := &fakeIngester{}
	d := New(Options{Primary: primary, Logger: quietLogger()})
	res, err := d.Dispatch(context.Background(), "1", packet(0))
	if err != nil || res.Accepted != 0 || primary.calls != 0 {
		t.Fatalf("res=%+v err=%v calls=%d", res, err, primary.calls)
	}
}

func TestDispatchHTTPFailureLandsInSQLite(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer api.Close()

	ctx := context.Background()
	sqlStore, err := store.OpenSQL(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "fb.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer sqlStore.Close()
	if err := sqlStore.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}

	d := New(Options{
		Primary:     NewHTTPIngester(api.URL+"/ingest/teltonika/ingest", time.Second),
		PrimaryName: "http",
		Fallback:    sqlStore,
		Logger:      quietLogger(),
	})
	res, err := d.Dispatch(ctx, "356307042441013", packet(4))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Accepted != 4 {
		t.Fatalf("Accepted = %d, want 4", res.Accepted)
	}
}

func TestHTTPIngesterPostsBatch(t *testing.T) {
	var got map[string]any
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/ingest/teltonika/ingest" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad content type", http.StatusUnsupportedMediaType)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer api.Close()

	h := NewHTTPIngester(api.URL+"/ingest/teltonika/ingest", time.Second)
	if err := h.Ingest(context.Background(), pipeline.NewBatch("42", packet(2))); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got["external_id"] != "42" || got["codec"] != float64(8) {
		t.Fatalf("body = %v", got)
	}
	if recs, _ := got["batch"].([]any); len(recs) != 2 {
		t.Fatalf("batch = %v", got["batch"])
	}
}

func TestHTTPIngesterNon2xx(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer api.Close()

	err := NewHTTPIngester(api.URL, time.Second).Ingest(context.Background(), pipeline.NewBatch("1", packet(1)))
	if !errors.Is(err, ErrIngestStatus) {
		t.Fatalf("err = %v, want ErrIngestStatus", err)
	}
}

func TestRememberICCIDOncePerValue(t *testing.T) {
	state := &fakeState{iccids: map[string]string{}}
	feed := &fakeFeed{}
	d := New(Options{Primary: &fakeIngester{}, State: state, Feed: feed, Logger: quietLogger()})

	pkt := packet(1)
	pkt.Records[0].IO.Set(codec.NamedKey(fmxxx.CCIDKey), codec.Text("89370041234567890123"))

	for i := 0; i < 2; i++ {
		if _, err := d.Dispatch(context.Background(), "7", pkt); err != nil {
			t.Fatal(err)
		}
	}
	if state.iccids["7"] != "89370041234567890123" {
		t.Fatalf("state = %v", state.iccids)
	}
	if len(feed.devices) != 1 || feed.devices[0].State != link.DeviceStateUpdate {
		t.Fatalf("device events = %+v", feed.devices)
	}
}

func TestBatchICCIDIgnoresPartial(t *testing.T) {
	pkt := packet(2)
	pkt.Records[1].IO.Set(codec.NamedKey(fmxxx.CCIDKey), codec.Text("8937"))
	if got := batchICCID(pipeline.NewBatch("1", pkt)); got != "" {
		t.Fatalf("batchICCID = %q", got)
	}
}
