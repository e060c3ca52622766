package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TCPConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avl_tcp_connections_total",
		Help: "Total de conexiones TCP aceptadas",
	})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "avl_active_sessions",
		Help: "Sesiones de dispositivo abiertas",
	})
	HandshakeOK = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avl_handshake_ok_total",
		Help: "Total de handshakes IMEI ok",
	})
	HandshakeFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avl_handshake_failed_total",
		Help: "Handshakes IMEI rechazados o cortados",
	})
	FramesRecv = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avl_frames_received_total",
		Help: "Total de frames AVL recibidos",
	})
	KeepAlives = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avl_keepalives_total",
		Help: "Frames de longitud cero",
	})
	CRCErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avl_crc_errors_total",
		Help: "Frames con CRC invalido",
	})
	ParseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avl_parse_errors_total",
		Help: "Errores al decodificar Codec 8/8E",
	}, []string{"reason"})
	CountMismatch = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avl_record_count_mismatch_total",
		Help: "Payloads con N1 distinto de N2",
	})
	ResyncBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avl_resync_bytes_total",
		Help: "Bytes descartados al resincronizar",
	})
	RecordsAck = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avl_records_ack_total",
		Help: "Total de registros AVL confirmados (ACK al equipo)",
	})
	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avl_dispatch_total",
		Help: "Resultado de cada envio por camino",
	}, []string{"path", "outcome"})
	DeviceStateErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avl_device_state_errors_total",
		Help: "Errores al escribir estado de dispositivo",
	})
	PublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avl_live_publish_errors_total",
		Help: "Errores al publicar al feed en vivo",
	})
	ParseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "avl_parse_latency_seconds",
		Help:    "Latencia del parseo por frame",
		Buckets: prometheus.DefBuckets,
	})
)

func ObserveParseLatency(start time.Time) {
	ParseLatency.Observe(time.Since(start).Seconds())
}

func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// StartMetricsServer serves /metrics and /healthz until ctx is done.
func StartMetricsServer(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
