package ubx

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

// Драйверы последовательного порта
const (
	DriverTarm  = "tarm"
	DriverBugst = "bugst"
)

// portReadTimeout — таймаут одного чтения в фоновом цикле; нужен, чтобы Close не зависал
const portReadTimeout = 100 * time.Millisecond

// maxFastEmptyReads — сколько пустых чтений подряд, вернувшихся раньше
// таймаута, означают пропавшее устройство (hangup на tty)
const maxFastEmptyReads = 3

var (
	// ErrNoData — ReadByte вызван при пустом буфере приёма
	ErrNoData = errors.New("ubx: no data available")
	// ErrDisconnected — порт перестал блокироваться на чтении: устройство отключено
	ErrDisconnected = errors.New("ubx: serial device disconnected")
)

// Port — последовательный порт приёмника как дуплексный байтовый поток.
// Фоновая горутина читает порт в буфер; Available/ReadByte не блокируются.
type Port struct {
	rw          io.ReadWriteCloser
	drain       func() error
	device      string
	readTimeout time.Duration

	mu      sync.Mutex
	pending []byte
	err     error

	closed atomic.Bool
	done   chan struct{}
}

// Open открывает последовательный порт выбранным драйвером (по умолчанию tarm)
func Open(device string, baud int, driver string) (*Port, error) {
	if baud == 0 {
		baud = 9600
	}
	switch driver {
	case "", DriverTarm:
		c := &serial.Config{
			Name:        device,
			Baud:        baud,
			ReadTimeout: portReadTimeout,
		}
		sp, err := serial.OpenPort(c)
		if err != nil {
			return nil, fmt.Errorf("serial open %s: %w", device, err)
		}
		// tarm не умеет tcdrain; время на отправку даёт settle time контроллера
		return newPort(device, sp, nil, portReadTimeout), nil
	case DriverBugst:
		mode := &bugst.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   bugst.NoParity,
			StopBits: bugst.OneStopBit,
		}
		sp, err := bugst.Open(device, mode)
		if err != nil {
			return nil, fmt.Errorf("serial open %s: %w", device, err)
		}
		if err := sp.SetReadTimeout(portReadTimeout); err != nil {
			_ = sp.Close()
			return nil, fmt.Errorf("serial timeout %s: %w", device, err)
		}
		return newPort(device, sp, sp.Drain, portReadTimeout), nil
	default:
		return nil, fmt.Errorf("unknown serial driver: %s", driver)
	}
}

// ListPorts возвращает список последовательных портов системы
func ListPorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

func newPort(device string, rw io.ReadWriteCloser, drain func() error, readTimeout time.Duration) *Port {
	p := &Port{
		rw:          rw,
		drain:       drain,
		device:      device,
		readTimeout: readTimeout,
		done:        make(chan struct{}),
	}
	go p.readLoop()
	return p
}

// readLoop читает порт в буфер до Close или ошибки. Пустое чтение (tarm
// отдаёт io.EOF, bugst — 0, nil) штатно означает истёкший таймаут; если же
// оно возвращается сразу и несколько раз подряд, устройство пропало.
func (p *Port) readLoop() {
	defer close(p.done)
	buf := make([]byte, 256)
	fastEmpty := 0
	for {
		start := time.Now()
		n, err := p.rw.Read(buf)
		elapsed := time.Since(start)
		if n > 0 {
			p.mu.Lock()
			p.pending = append(p.pending, buf[:n]...)
			p.mu.Unlock()
		}
		if p.closed.Load() {
			return
		}
		if err != nil && !errors.Is(err, io.EOF) {
			p.setErr(err)
			return
		}
		switch {
		case n > 0, elapsed >= p.readTimeout/2:
			fastEmpty = 0
		default:
			fastEmpty++
			if fastEmpty >= maxFastEmptyReads {
				p.setErr(ErrDisconnected)
				return
			}
		}
	}
}

func (p *Port) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Device возвращает имя устройства
func (p *Port) Device() string {
	return p.device
}

// Available возвращает true, если в буфере приёма есть байты
func (p *Port) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending) > 0
}

// ReadByte забирает один байт из буфера приёма
func (p *Port) ReadByte() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		if p.err != nil {
			return 0, p.err
		}
		return 0, ErrNoData
	}
	c := p.pending[0]
	p.pending = p.pending[1:]
	return c, nil
}

// Write отправляет готовый UBX кадр
func (p *Port) Write(frame []byte) error {
	_, err := p.rw.Write(frame)
	return err
}

// Flush ждёт физической отправки записанных байт (если драйвер это умеет)
func (p *Port) Flush() error {
	if p.drain == nil {
		return nil
	}
	return p.drain()
}

// Err возвращает ошибку фонового чтения (порт пропал и т.п.)
func (p *Port) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Close закрывает порт и дожидается остановки фонового чтения
func (p *Port) Close() error {
	if p == nil || p.rw == nil {
		return nil
	}
	if p.closed.Swap(true) {
		return nil
	}
	err := p.rw.Close()
	<-p.done
	return err
}
