package controller

import "github.com/TwoToneEddy/gpsTestOnUno/internal/ubx"

// State — состояние контроллера. Создаётся один раз при старте и меняется
// только методами Controller; между запусками не сохраняется.
type State struct {
	Configured        bool
	Awake             bool
	HasLock           bool
	PositionRequested bool
	// MessageCounter — записи, полученные с момента запроса позиции
	MessageCounter uint
	// AwakeIdleCounter — циклы бодрствования после fix
	AwakeIdleCounter uint
}

// Phase возвращает имя состояния для логов и метрик
func (s State) Phase() string {
	switch {
	case !s.Configured:
		return "unconfigured"
	case !s.Awake:
		return "asleep"
	case s.PositionRequested:
		return "acquiring"
	case s.HasLock:
		return "locked"
	default:
		return "awake"
	}
}

// Listener получает события контроллера (метрики, публикация)
type Listener interface {
	CommandSent(cmd ubx.Command)
	RecordDecoded(rec ubx.NavPosllh)
	FixAccepted(fix Fix)
	StateChanged(st State)
}

// NopListener — пустая реализация Listener для встраивания
type NopListener struct{}

func (NopListener) CommandSent(ubx.Command)     {}
func (NopListener) RecordDecoded(ubx.NavPosllh) {}
func (NopListener) FixAccepted(Fix)             {}
func (NopListener) StateChanged(State)          {}
