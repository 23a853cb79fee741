// Package logger — единый вывод логов gps-poll с учётом quiet.
// Вывод идёт через zap; при заданном файле — с ротацией lumberjack.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Quiet при true отключает информационные сообщения (Info, Debug); Error выводится всегда.
var Quiet bool

// Config — параметры логирования
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // console или json
	File       string // пусто — только stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var (
	mu    sync.RWMutex
	sugar = build(Config{}, os.Stderr)
)

// Init перестраивает логгер по конфигу
func Init(cfg Config) error {
	switch strings.ToLower(cfg.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log level %q: expected debug, info, warn or error", cfg.Level)
	}
	var w io.Writer = os.Stderr
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		w = io.MultiWriter(os.Stderr, lj)
	}
	SetOutput(cfg, w)
	return nil
}

// SetOutput направляет логи в w (используется в тестах)
func SetOutput(cfg Config, w io.Writer) {
	s := build(cfg, w)
	mu.Lock()
	old := sugar
	sugar = s
	mu.Unlock()
	_ = old.Sync()
}

func build(cfg Config, w io.Writer) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     func(t time.Time, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(t.Format(time.RFC3339Nano)) },
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	var enc zapcore.Encoder
	if strings.ToLower(cfg.Format) == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return zap.New(core).Named("gps-poll").Sugar()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Debug выводит отладочное сообщение, если Quiet == false.
func Debug(format string, args ...interface{}) {
	if Quiet {
		return
	}
	get().Debugf(format, args...)
}

// Info выводит сообщение, если Quiet == false.
func Info(format string, args ...interface{}) {
	if Quiet {
		return
	}
	get().Infof(format, args...)
}

// Error выводит сообщение об ошибке всегда.
func Error(format string, args ...interface{}) {
	get().Errorf(format, args...)
}

// Sync сбрасывает буферы логгера (вызывать перед выходом)
func Sync() {
	_ = get().Sync()
}
