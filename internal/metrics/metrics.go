// Package metrics — Prometheus метрики декодера и контроллера.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TwoToneEddy/gpsTestOnUno/internal/controller"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/logger"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/ubx"
)

// NewRegistry создаёт Registry с go/process коллекторами
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler возвращает HTTP обработчик /metrics
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Collector — метрики gps-poll; реализует controller.Listener
type Collector struct {
	RecordsDecoded prometheus.Counter
	FixesAccepted  *prometheus.CounterVec // labels: forced=true|false
	CommandsSent   *prometheus.CounterVec // labels: command
	LastHAccMeters prometheus.Gauge
	Awake          prometheus.Gauge
	Locked         prometheus.Gauge
}

var _ controller.Listener = (*Collector)(nil)

// NewCollector регистрирует метрики в reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		RecordsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gps_navposllh_records_total",
			Help: "NAV-POSLLH records with a valid checksum.",
		}),
		FixesAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gps_fixes_total",
			Help: "Accepted position fixes.",
		}, []string{"forced"}),
		CommandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gps_commands_total",
			Help: "Commands sent to the GPS module.",
		}, []string{"command"}),
		LastHAccMeters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gps_last_hacc_meters",
			Help: "Horizontal accuracy of the last decoded record.",
		}),
		Awake: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gps_module_awake",
			Help: "1 while the GPS module is awake.",
		}),
		Locked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gps_locked",
			Help: "1 while a position fix is held.",
		}),
	}
	reg.MustRegister(c.RecordsDecoded, c.FixesAccepted, c.CommandsSent, c.LastHAccMeters, c.Awake, c.Locked)
	return c
}

// ObserveDecoder регистрирует счётчики ошибок декодера, читаемые при сборе
func ObserveDecoder(reg prometheus.Registerer, stats func() ubx.DecoderStats) {
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "gps_decoder_checksum_errors_total",
			Help: "UBX frames dropped on checksum mismatch.",
		}, func() float64 { return float64(stats().ChecksumErrors) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "gps_decoder_sync_resets_total",
			Help: "Decoder resets on a broken sync sequence.",
		}, func() float64 { return float64(stats().SyncResets) }),
	)
}

// CommandSent считает отправленные команды по имени
func (c *Collector) CommandSent(cmd ubx.Command) {
	c.CommandsSent.WithLabelValues(cmd.String()).Inc()
}

// RecordDecoded считает записи и запоминает последнюю hAcc
func (c *Collector) RecordDecoded(rec ubx.NavPosllh) {
	c.RecordsDecoded.Inc()
	c.LastHAccMeters.Set(rec.HAccM())
}

// FixAccepted считает fix с меткой forced
func (c *Collector) FixAccepted(fix controller.Fix) {
	c.FixesAccepted.WithLabelValues(strconv.FormatBool(fix.Forced)).Inc()
}

// StateChanged обновляет gauges awake/locked
func (c *Collector) StateChanged(st controller.State) {
	c.Awake.Set(boolGauge(st.Awake))
	c.Locked.Set(boolGauge(st.HasLock))
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// Serve поднимает HTTP /metrics на addr до отмены ctx
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics: listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
