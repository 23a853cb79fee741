// Package gpsloop предоставляет запуск цикла опроса GPS для встраивания в другие программы.
package gpsloop

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/TwoToneEddy/gpsTestOnUno/internal/config"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/console"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/controller"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/gpssim"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/logger"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/metrics"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/publish"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/ubx"
)

// Device — транспорт к модулю, который можно закрыть
type Device interface {
	controller.Transport
	Close() error
}

// Console — источник однобайтовых команд и приёмник строк результата
type Console interface {
	io.Writer
	Keys() []byte
}

// simDevice — симулятор как Device
type simDevice struct {
	*gpssim.Module
}

func (simDevice) Close() error { return nil }

// OpenDevice открывает порт из конфига или симулятор при sim: true
func OpenDevice(cfg *config.Config) (Device, error) {
	if cfg.Sim {
		opts := gpssim.DefaultOptions()
		opts.Seed = time.Now().UnixNano()
		logger.Info("using simulated receiver")
		return simDevice{gpssim.New(opts)}, nil
	}
	p, err := ubx.Open(cfg.Device.Port, cfg.Device.Baud, cfg.Device.Driver)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device.Port, err)
	}
	logger.Info("opened %s at %d baud (%s)", cfg.Device.Port, cfg.Device.Baud, cfg.Device.Driver)
	return p, nil
}

// Run открывает устройство и консоль на stdin/stdout и крутит цикл до отмены ctx.
func Run(ctx context.Context, cfg *config.Config) error {
	dev, err := OpenDevice(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	con := console.Stdio()
	defer con.Close()

	return Loop(ctx, cfg, dev, con)
}

// Loop — основной цикл: команды с консоли, Tick контроллера, пауза Interval.
// Ошибки записи логируются и цикл продолжается; ошибка чтения порта
// завершает цикл.
func Loop(ctx context.Context, cfg *config.Config, dev Device, con Console) error {
	opts := cfg.ControllerOptions()

	// снимок счётчиков декодера; обновляется после каждого Tick, читается при сборе метрик
	var stats atomic.Pointer[ubx.DecoderStats]
	stats.Store(&ubx.DecoderStats{})

	if cfg.Metrics.Listen != "" {
		reg := metrics.NewRegistry()
		opts.Listeners = append(opts.Listeners, metrics.NewCollector(reg))
		metrics.ObserveDecoder(reg, func() ubx.DecoderStats { return *stats.Load() })
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, reg); err != nil {
				logger.Error("metrics: %v", err)
			}
		}()
	}
	if cfg.MQTT.Broker != "" {
		pub, err := publish.Connect(publish.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			QoS:      cfg.MQTT.QoS,
			Retain:   cfg.MQTT.Retain,
		})
		if err != nil {
			logger.Error("%v; fixes will not be published", err)
		} else {
			defer pub.Close()
			opts.Listeners = append(opts.Listeners, pub)
		}
	}

	ctrl := controller.New(dev, con, opts)
	st := &controller.State{}

	logger.Info("gps-poll: mode=%s threshold=%.1fm lock_limit=%d stay_awake=%d",
		opts.Mode, opts.HAccThresholdM, opts.LockMsgLimit, opts.StayAwakeCycles)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		for _, key := range con.Keys() {
			if err := ctrl.HandleCommand(st, key); err != nil {
				logger.Error("command %q: %v", key, err)
			}
		}
		if err := ctrl.Tick(st); err != nil {
			logger.Error("tick: %v", err)
		}
		snapshot := ctrl.DecoderStats()
		stats.Store(&snapshot)
		if p, ok := dev.(interface{ Err() error }); ok {
			if err := p.Err(); err != nil {
				return fmt.Errorf("serial: %w", err)
			}
		}
		timer.Reset(ctrl.Interval(st))
	}
}
