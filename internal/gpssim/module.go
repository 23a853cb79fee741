// Package gpssim — имитация u-blox модуля для запуска без железа и для тестов.
//
// Модуль понимает CFG-PWR (sleep/wake), CFG-MSG (отключение NMEA) и poll
// NAV-POSLLH. На каждый poll в бодрствующем состоянии отвечает кадром
// NAV-POSLLH, точность которого улучшается от опроса к опросу.
package gpssim

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync"

	"github.com/TwoToneEddy/gpsTestOnUno/internal/ubx"
)

// payload CFG-PWR в порядке передачи
var (
	pwrStop = []byte{0x50, 0x4F, 0x54, 0x53}
	pwrRun  = []byte{0x20, 0x4E, 0x55, 0x52}
)

// Options — параметры симуляции
type Options struct {
	LatE7  int32 // широта точки, 1e-7 град
	LonE7  int32 // долгота точки, 1e-7 град
	HMSLMM int32
	// StartHAccMM — точность первого ответа после пробуждения
	StartHAccMM uint32
	// FloorHAccMM — лучшая достижимая точность
	FloorHAccMM uint32
	// Decay — множитель точности на каждый ответ (0..1)
	Decay float64
	// JitterE7 — разброс координат, 1e-7 град
	JitterE7 int32
	Seed     int64
	// StartAwake — модуль включён до первой команды
	StartAwake bool
}

// DefaultOptions — точка в Лондоне, fix примерно за десяток опросов
func DefaultOptions() Options {
	return Options{
		LatE7:       515007590,
		LonE7:       -1246310,
		HMSLMM:      32000,
		StartHAccMM: 80000,
		FloorHAccMM: 2500,
		Decay:       0.7,
		JitterE7:    300,
		Seed:        1,
		StartAwake:  true,
	}
}

// Module — симулированный приёмник; реализует транспорт контроллера
type Module struct {
	mu   sync.Mutex
	opts Options
	rng  *rand.Rand

	awake        bool
	nmeaDisabled map[uint8]bool
	hAcc         float64
	itow         uint32
	out          bytes.Buffer
	polls        int
}

// New создаёт модуль
func New(opts Options) *Module {
	if opts.Decay <= 0 || opts.Decay > 1 {
		opts.Decay = DefaultOptions().Decay
	}
	m := &Module{
		opts:         opts,
		rng:          rand.New(rand.NewSource(opts.Seed)),
		awake:        opts.StartAwake,
		nmeaDisabled: make(map[uint8]bool),
		hAcc:         float64(opts.StartHAccMM),
		itow:         345600000,
	}
	return m
}

// Awake — включён ли модуль
func (m *Module) Awake() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.awake
}

// Polls — сколько poll запросов получено
func (m *Module) Polls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}

// NMEADisabled — отключён ли вывод NMEA сообщения msgID
func (m *Module) NMEADisabled(msgID uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nmeaDisabled[msgID]
}

// Available — есть ли байты для чтения
func (m *Module) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out.Len() > 0
}

// ReadByte отдаёт следующий байт ответа
func (m *Module) ReadByte() (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.out.ReadByte()
	if err != nil {
		return 0, ubx.ErrNoData
	}
	return b, nil
}

// Write принимает кадр команды. Кадры с неверной суммой игнорируются,
// как это делает приёмник.
func (m *Module) Write(frame []byte) error {
	if !ubx.VerifyChecksum(frame) {
		return nil
	}
	h, ok := ubx.ParseHeader(frame)
	if !ok {
		return nil
	}
	payload := ubx.Payload(frame)

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case h.Class == ubx.ClassCFG && h.ID == ubx.IDCFGPWR && len(payload) == 8:
		switch {
		case bytes.Equal(payload[4:], pwrStop):
			m.awake = false
			m.out.Reset()
		case bytes.Equal(payload[4:], pwrRun):
			if !m.awake {
				// после backup точность снова грубая
				m.hAcc = float64(m.opts.StartHAccMM)
			}
			m.awake = true
		}
	case h.Class == ubx.ClassCFG && h.ID == ubx.IDCFGMSG && len(payload) == 3 && payload[0] == ubx.ClassNMEA:
		m.nmeaDisabled[payload[1]] = payload[2] == 0
	case h.Class == ubx.ClassNAV && h.ID == ubx.IDNAVPOSLLH && h.Length == 0:
		m.polls++
		if m.awake {
			m.emitNMEA()
			m.emitPosllh()
		}
	}
	return nil
}

// Flush — запись в симулятор синхронная
func (m *Module) Flush() error {
	return nil
}

func (m *Module) emitPosllh() {
	r := ubx.NewNavPosllh()
	m.itow += 1000
	r.ITOW = m.itow
	r.Lat = m.opts.LatE7 + m.jitter()
	r.Lon = m.opts.LonE7 + m.jitter()
	r.HMSL = m.opts.HMSLMM
	r.Height = m.opts.HMSLMM + 45000
	r.HAcc = uint32(m.hAcc)
	r.VAcc = uint32(m.hAcc * 1.6)
	m.out.Write(r.Frame())

	m.hAcc *= m.opts.Decay
	if m.hAcc < float64(m.opts.FloorHAccMM) {
		m.hAcc = float64(m.opts.FloorHAccMM)
	}
}

// emitNMEA добавляет в поток NMEA строки, вывод которых ещё не отключён
func (m *Module) emitNMEA() {
	names := []string{"GGA", "GLL", "GSA", "GSV", "RMC", "VTG"}
	for id, name := range names {
		if m.nmeaDisabled[uint8(id)] {
			continue
		}
		fmt.Fprintf(&m.out, "$GP%s,%d*00\r\n", name, m.itow/1000)
	}
}

func (m *Module) jitter() int32 {
	if m.opts.JitterE7 <= 0 {
		return 0
	}
	return m.rng.Int31n(2*m.opts.JitterE7+1) - m.opts.JitterE7
}
