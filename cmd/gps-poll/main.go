// gps-poll — разовое получение координат с u-blox приёмника по протоколу UBX.
//
// Модуль держится в режиме сна; по команде 'p' с консоли он будится,
// опрашивается NAV-POSLLH до достижения нужной точности (или лимита
// сообщений), координаты печатаются ссылкой на карту, и после простоя
// модуль снова засыпает.
//
// Использование:
//
//	gps-poll -port /dev/ttyUSB0            — автоматический режим
//	gps-poll -mode manual                  — ручные 's'/'w', печать каждой записи
//	gps-poll -sim                          — без железа, встроенный симулятор
//	gps-poll -list-ports                   — список последовательных портов
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/TwoToneEddy/gpsTestOnUno/internal/config"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/logger"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/ubx"
	"github.com/TwoToneEddy/gpsTestOnUno/pkg/gpsloop"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигу (по умолчанию "+config.DefaultPath+")")
	port := flag.String("port", "", "последовательный порт (переопределяет config)")
	baud := flag.Int("baud", 0, "скорость порта (переопределяет config)")
	driver := flag.String("driver", "", "драйвер порта: tarm или bugst (переопределяет config)")
	mode := flag.String("mode", "", "режим: auto или manual (переопределяет config)")
	sim := flag.Bool("sim", false, "использовать симулятор вместо порта")
	listPorts := flag.Bool("list-ports", false, "показать последовательные порты и выйти")
	quiet := flag.Bool("quiet", false, "меньше вывода")
	flag.Parse()

	if *listPorts {
		runListPorts()
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if *port != "" {
		cfg.Device.Port = *port
	}
	if *baud != 0 {
		cfg.Device.Baud = *baud
	}
	if *driver != "" {
		cfg.Device.Driver = *driver
	}
	if *mode != "" {
		cfg.Controller.Mode = *mode
	}
	if *sim {
		cfg.Sim = true
	}
	if *quiet {
		cfg.Log.Quiet = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	logger.Quiet = cfg.Log.Quiet

	runWithShutdown(cfg)
}

// loadConfig читает конфиг; файл по умолчанию необязателен, явно указанный — обязателен
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultPath); os.IsNotExist(err) {
			return config.Default(), nil
		}
		path = config.DefaultPath
	}
	return config.Load(path)
}

func runListPorts() {
	ports, err := ubx.ListPorts()
	if err != nil {
		log.Fatalf("list ports: %v", err)
	}
	if len(ports) == 0 {
		fmt.Println("последовательные порты не найдены")
		return
	}
	for _, p := range ports {
		fmt.Println(p)
	}
}

// runWithShutdown крутит цикл до SIGINT/SIGTERM
func runWithShutdown(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("получен сигнал %v, завершение...", sig)
		cancel()
	}()

	if err := gpsloop.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("%v", err)
		logger.Sync()
		os.Exit(1)
	}
}
