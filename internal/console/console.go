// Package console — консоль оператора: однобайтовые команды на входе,
// строки результата на выходе.
package console

import (
	"io"
	"os"
	"sync"
)

// keyBuffer — сколько нажатий держим до очередного цикла
const keyBuffer = 64

// Console читает команды из in в фоне и пишет строки в out
type Console struct {
	out     io.Writer
	keys    chan byte
	restore func() error

	mu     sync.Mutex
	closed bool
}

// New создаёт консоль поверх произвольных потоков
func New(in io.Reader, out io.Writer) *Console {
	c := &Console{
		out:  out,
		keys: make(chan byte, keyBuffer),
	}
	go c.readLoop(in)
	return c
}

// Stdio создаёт консоль на stdin/stdout. Если stdin — терминал, он
// переводится в неканонический режим без эха, чтобы команда
// принималась без Enter.
func Stdio() *Console {
	c := New(os.Stdin, os.Stdout)
	if restore, err := makeRaw(int(os.Stdin.Fd())); err == nil {
		c.restore = restore
	}
	return c
}

func (c *Console) readLoop(in io.Reader) {
	buf := make([]byte, 16)
	for {
		n, err := in.Read(buf)
		for _, b := range buf[:n] {
			select {
			case c.keys <- b:
			default:
				// цикл не успевает — лишние нажатия теряются
			}
		}
		if err != nil {
			return
		}
	}
}

// Keys возвращает накопленные команды без блокировки
func (c *Console) Keys() []byte {
	var out []byte
	for {
		select {
		case b := <-c.keys:
			out = append(out, b)
		default:
			return out
		}
	}
}

// Write пишет текст результата
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

// Close возвращает терминал в исходный режим
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.restore != nil {
		return c.restore()
	}
	return nil
}
