// Package controller — управление питанием GPS модуля и разовым получением координат.
//
// Контроллер работает кооперативно: вызывающий цикл с заданной частотой
// вызывает Tick, который вычитывает все доступные байты транспорта через
// декодер, оценивает критерии fix и отправляет команды обратно модулю.
// Собственных таймеров у контроллера нет; счётчики циклов зависят от
// частоты вызывающего цикла (см. Interval).
package controller

import (
	"fmt"
	"io"
	"time"

	"github.com/TwoToneEddy/gpsTestOnUno/internal/logger"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/ubx"
)

// Transport — байтовый дуплексный поток к модулю
type Transport interface {
	Available() bool
	ReadByte() (byte, error)
	Write(frame []byte) error
	// Flush блокируется до физической отправки записанного
	Flush() error
}

// Mode — режим работы
type Mode string

const (
	// ModeAuto — конфигурация, запрос позиции по 'p', захват и автоматический сон
	ModeAuto Mode = "auto"
	// ModeManual — только ручные 's'/'w', печать каждой записи
	ModeManual Mode = "manual"
)

// Команды с консоли
const (
	KeyPosition = 'p'
	KeySleep    = 's'
	KeyWake     = 'w'
)

// Options — параметры контроллера
type Options struct {
	Mode Mode
	// HAccThresholdM — порог горизонтальной точности в метрах
	HAccThresholdM float64
	// LockMsgLimit — сколько отклонённых записей допустимо до принудительного fix
	LockMsgLimit uint
	// StayAwakeCycles — циклов бодрствования после fix до отправки Sleep
	StayAwakeCycles uint
	// IdleInterval — период цикла без активного запроса
	IdleInterval time.Duration
	// PollInterval — период цикла во время запроса позиции
	PollInterval time.Duration
	// SettleTime — пауза после каждой команды, чтобы модуль успел отреагировать
	SettleTime time.Duration
	// Sleep реализует паузу settle time; nil — time.Sleep
	Sleep     func(time.Duration)
	Listeners []Listener
}

// DefaultOptions возвращает параметры по умолчанию
func DefaultOptions() Options {
	return Options{
		Mode:            ModeAuto,
		HAccThresholdM:  10,
		LockMsgLimit:    180,
		StayAwakeCycles: 60,
		IdleInterval:    time.Second,
		PollInterval:    100 * time.Millisecond,
		SettleTime:      100 * time.Millisecond,
	}
}

// Fix — принятое решение о позиции
type Fix struct {
	ubx.NavPosllh
	// Forced — fix принят по лимиту сообщений, а не по точности
	Forced bool
	// Messages — сколько записей понадобилось
	Messages uint
}

// Controller — конечный автомат питания и захвата позиции поверх декодера
type Controller struct {
	transport Transport
	out       io.Writer
	dec       *ubx.Decoder
	opts      Options
}

// New создаёт контроллер. out — консоль для строк результата.
// Нулевые поля opts заменяются значениями DefaultOptions, кроме SettleTime.
func New(t Transport, out io.Writer, opts Options) *Controller {
	d := DefaultOptions()
	if opts.Mode == "" {
		opts.Mode = d.Mode
	}
	if opts.HAccThresholdM <= 0 {
		opts.HAccThresholdM = d.HAccThresholdM
	}
	if opts.LockMsgLimit == 0 {
		opts.LockMsgLimit = d.LockMsgLimit
	}
	if opts.StayAwakeCycles == 0 {
		opts.StayAwakeCycles = d.StayAwakeCycles
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = d.IdleInterval
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = d.PollInterval
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if out == nil {
		out = io.Discard
	}
	return &Controller{
		transport: t,
		out:       out,
		dec:       ubx.NewDecoder(),
		opts:      opts,
	}
}

// DecoderStats возвращает счётчики декодера
func (c *Controller) DecoderStats() ubx.DecoderStats {
	return c.dec.Stats()
}

// Interval возвращает период до следующего Tick
func (c *Controller) Interval(st *State) time.Duration {
	if st.PositionRequested {
		return c.opts.PollInterval
	}
	return c.opts.IdleInterval
}

// Send пишет кадры команды в транспорт; после каждого кадра — flush и settle time
func (c *Controller) Send(cmd ubx.Command) error {
	for _, f := range cmd.Frames() {
		if err := c.transport.Write(f); err != nil {
			return fmt.Errorf("send %s: %w", cmd, err)
		}
		if err := c.transport.Flush(); err != nil {
			return fmt.Errorf("flush %s: %w", cmd, err)
		}
		if c.opts.SettleTime > 0 {
			c.opts.Sleep(c.opts.SettleTime)
		}
	}
	for _, l := range c.opts.Listeners {
		l.CommandSent(cmd)
	}
	return nil
}

// Tick — один цикл управления: конфигурация при первом вызове, затем
// разбор всех доступных байт и решение о следующей команде.
func (c *Controller) Tick(st *State) error {
	defer c.notifyState(st)

	if !st.Configured {
		if c.opts.Mode == ModeManual {
			st.Configured = true
		} else {
			return c.configure(st)
		}
	}
	if err := c.drain(st); err != nil {
		return err
	}
	if c.opts.Mode == ModeManual {
		return nil
	}

	switch {
	case st.PositionRequested:
		return c.Send(ubx.CmdPollPosition)
	case st.Awake && st.HasLock:
		st.AwakeIdleCounter++
		if st.AwakeIdleCounter > c.opts.StayAwakeCycles {
			logger.Info("idle for %d cycles after fix, sleeping", c.opts.StayAwakeCycles)
			return c.sleep(st)
		}
	}
	return nil
}

// HandleCommand обрабатывает однобайтовую команду с консоли
func (c *Controller) HandleCommand(st *State, key byte) error {
	switch key {
	case '\r', '\n', ' ', '\t':
		return nil
	}
	defer c.notifyState(st)
	fmt.Fprintf(c.out, "Got: %c\n", key)

	switch key {
	case KeyPosition:
		if c.opts.Mode == ModeManual {
			fmt.Fprintln(c.out, "Position requests need auto mode")
			return nil
		}
		if !st.Configured {
			if err := c.configure(st); err != nil {
				return err
			}
		}
		if !st.Awake {
			if err := c.wake(st); err != nil {
				return err
			}
		}
		st.PositionRequested = true
		st.HasLock = false
		st.MessageCounter = 0
		fmt.Fprintln(c.out, "Requesting position...")
	case KeySleep:
		fmt.Fprintln(c.out, "Sleeping...")
		return c.sleep(st)
	case KeyWake:
		fmt.Fprintln(c.out, "Waking...")
		return c.wake(st)
	}
	return nil
}

func (c *Controller) configure(st *State) error {
	if err := c.Send(ubx.CmdConfigure); err != nil {
		return err
	}
	if err := c.Send(ubx.CmdSleep); err != nil {
		return err
	}
	st.Configured = true
	st.Awake = false
	st.HasLock = false
	logger.Info("module configured: NMEA output disabled, sleeping")
	return nil
}

func (c *Controller) wake(st *State) error {
	if err := c.Send(ubx.CmdWake); err != nil {
		return err
	}
	st.Awake = true
	st.AwakeIdleCounter = 0
	return nil
}

func (c *Controller) sleep(st *State) error {
	if err := c.Send(ubx.CmdSleep); err != nil {
		return err
	}
	st.Awake = false
	st.HasLock = false
	st.PositionRequested = false
	st.AwakeIdleCounter = 0
	return nil
}

// drain прогоняет все доступные байты через декодер
func (c *Controller) drain(st *State) error {
	for c.transport.Available() {
		b, err := c.transport.ReadByte()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if rec, ok := c.dec.Feed(b); ok {
			c.handleRecord(st, rec)
		}
	}
	return nil
}

func (c *Controller) handleRecord(st *State, rec ubx.NavPosllh) {
	for _, l := range c.opts.Listeners {
		l.RecordDecoded(rec)
	}
	if c.opts.Mode == ModeManual {
		c.printRecord(rec)
		return
	}
	if !st.PositionRequested {
		logger.Debug("NAV-POSLLH without request ignored (iTOW=%d)", rec.ITOW)
		return
	}

	st.MessageCounter++
	forced := false
	if rec.HAccM() > c.opts.HAccThresholdM {
		if st.MessageCounter <= c.opts.LockMsgLimit {
			logger.Debug("fix rejected: hAcc=%.2fm msg=%d", rec.HAccM(), st.MessageCounter)
			return
		}
		forced = true
	}

	fix := Fix{NavPosllh: rec, Forced: forced, Messages: st.MessageCounter}
	st.HasLock = true
	st.MessageCounter = 0
	st.PositionRequested = false
	st.AwakeIdleCounter = 0

	if forced {
		logger.Info("fix forced after %d messages, hAcc=%.2fm", fix.Messages, rec.HAccM())
	} else {
		logger.Info("fix accepted after %d messages, hAcc=%.2fm", fix.Messages, rec.HAccM())
	}
	c.printRecord(rec)
	for _, l := range c.opts.Listeners {
		l.FixAccepted(fix)
	}
}

func (c *Controller) printRecord(rec ubx.NavPosllh) {
	fmt.Fprintln(c.out, FormatPosition(rec))
	fmt.Fprintln(c.out, FormatAccuracy(rec))
}

func (c *Controller) notifyState(st *State) {
	for _, l := range c.opts.Listeners {
		l.StateChanged(*st)
	}
}

// FormatPosition — строка с ссылкой на карту
func FormatPosition(rec ubx.NavPosllh) string {
	return rec.MapsURL()
}

// FormatAccuracy — строка с точностью в метрах
func FormatAccuracy(rec ubx.NavPosllh) string {
	return fmt.Sprintf(" hAcc: %.2f vAcc: %.2f", rec.HAccM(), rec.VAccM())
}
