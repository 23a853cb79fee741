package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TwoToneEddy/gpsTestOnUno/internal/controller"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/logger"
)

// DefaultPath — файл конфига, который ищется без -config
const DefaultPath = "gps-poll.yml"

// Config — конфигурация gps-poll
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	Controller ControllerConfig `yaml:"controller"`
	Log        LogConfig        `yaml:"log"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	// Sim — вместо порта использовать встроенный симулятор модуля
	Sim bool `yaml:"sim"`
}

// DeviceConfig — последовательный порт u-blox
type DeviceConfig struct {
	Port   string `yaml:"port"`
	Baud   int    `yaml:"baud"`
	Driver string `yaml:"driver"` // tarm или bugst
}

// ControllerConfig — критерии fix и тайминги цикла
type ControllerConfig struct {
	Mode            string  `yaml:"mode"` // auto или manual
	HAccThresholdM  float64 `yaml:"h_acc_threshold_m"`
	LockMsgLimit    uint    `yaml:"lock_msg_limit"`
	StayAwakeCycles uint    `yaml:"stay_awake_cycles"`
	IdleInterval    string  `yaml:"idle_interval"`
	PollInterval    string  `yaml:"poll_interval"`
	SettleTime      string  `yaml:"settle_time"`
}

// LogConfig — уровень, формат и файл логов
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Quiet      bool   `yaml:"quiet"`
}

// MQTTConfig — публикация принятых fix; пустой broker отключает публикацию
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

// MetricsConfig — адрес HTTP /metrics; пусто — метрики не публикуются
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Default возвращает конфиг по умолчанию
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Port:   "/dev/ttyUSB0",
			Baud:   9600,
			Driver: "tarm",
		},
		Controller: ControllerConfig{
			Mode:            string(controller.ModeAuto),
			HAccThresholdM:  10,
			LockMsgLimit:    180,
			StayAwakeCycles: 60,
			IdleInterval:    "1s",
			PollInterval:    "100ms",
			SettleTime:      "100ms",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		MQTT: MQTTConfig{
			Topic: "gps/fix",
		},
	}
}

// Load читает конфиг из YAML
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	// ключи, которых нет в файле, сохраняют значения Default
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate проверяет значения, которые нельзя молча заменить дефолтом.
// Порог точности задаётся явно: 0 в файле — ошибка, а не дефолт.
func (c *Config) Validate() error {
	switch controller.Mode(c.Controller.Mode) {
	case controller.ModeAuto, controller.ModeManual:
	default:
		return fmt.Errorf("controller.mode must be auto or manual, got %q", c.Controller.Mode)
	}
	switch c.Device.Driver {
	case "tarm", "bugst":
	default:
		return fmt.Errorf("device.driver must be tarm or bugst, got %q", c.Device.Driver)
	}
	if c.Controller.HAccThresholdM <= 0 {
		return fmt.Errorf("controller.h_acc_threshold_m must be > 0, got %g", c.Controller.HAccThresholdM)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}

// ControllerOptions переводит секцию controller в параметры контроллера
func (c *Config) ControllerOptions() controller.Options {
	d := controller.DefaultOptions()
	return controller.Options{
		Mode:            controller.Mode(c.Controller.Mode),
		HAccThresholdM:  c.Controller.HAccThresholdM,
		LockMsgLimit:    c.Controller.LockMsgLimit,
		StayAwakeCycles: c.Controller.StayAwakeCycles,
		IdleInterval:    parseDuration(c.Controller.IdleInterval, d.IdleInterval),
		PollInterval:    parseDuration(c.Controller.PollInterval, d.PollInterval),
		SettleTime:      parseDuration(c.Controller.SettleTime, d.SettleTime),
	}
}

// LoggerConfig переводит секцию log в параметры логгера
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

func applyDefaults(c *Config) {
	d := Default()
	if c.Device.Port == "" {
		c.Device.Port = d.Device.Port
	}
	if c.Device.Baud == 0 {
		c.Device.Baud = d.Device.Baud
	}
	if c.Device.Driver == "" {
		c.Device.Driver = d.Device.Driver
	}
	if c.Controller.Mode == "" {
		c.Controller.Mode = d.Controller.Mode
	}
	if c.Controller.LockMsgLimit == 0 {
		c.Controller.LockMsgLimit = d.Controller.LockMsgLimit
	}
	if c.Controller.StayAwakeCycles == 0 {
		c.Controller.StayAwakeCycles = d.Controller.StayAwakeCycles
	}
	if c.Controller.IdleInterval == "" {
		c.Controller.IdleInterval = d.Controller.IdleInterval
	}
	if c.Controller.PollInterval == "" {
		c.Controller.PollInterval = d.Controller.PollInterval
	}
	if c.Controller.SettleTime == "" {
		c.Controller.SettleTime = d.Controller.SettleTime
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = d.Log.MaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = d.Log.MaxAgeDays
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = d.MQTT.Topic
	}
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}
