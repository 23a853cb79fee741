package ubx

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeDevice — устройство поверх io.Pipe: чтение из трубы, запись в буфер
type pipeDevice struct {
	*io.PipeReader
	mu      sync.Mutex
	written bytes.Buffer
}

func (d *pipeDevice) Write(b []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written.Write(b)
}

func (d *pipeDevice) Written() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.written.Bytes()...)
}

// emptyDevice — каждое чтение ждёт delay и возвращает 0 байт и err
type emptyDevice struct {
	delay  time.Duration
	err    error
	reads  atomic.Int64
	closes atomic.Int64
}

func (d *emptyDevice) Read([]byte) (int, error) {
	d.reads.Add(1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	return 0, d.err
}

func (d *emptyDevice) Write(b []byte) (int, error) { return len(b), nil }

func (d *emptyDevice) Close() error {
	d.closes.Add(1)
	return nil
}

func stopped(p *Port) bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// drainPort забирает всё, что уже пришло в буфер
func drainPort(p *Port, got *[]byte) {
	for p.Available() {
		b, err := p.ReadByte()
		if err != nil {
			return
		}
		*got = append(*got, b)
	}
}

func TestPort_ReadsInOrder(t *testing.T) {
	pr, pw := io.Pipe()
	p := newPort("test", &pipeDevice{PipeReader: pr}, nil, time.Second)

	go func() { _, _ = pw.Write([]byte{0xB5, 0x62, 0x01, 0x02}) }()

	var got []byte
	require.Eventually(t, func() bool {
		drainPort(p, &got)
		return len(got) == 4
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte{0xB5, 0x62, 0x01, 0x02}, got)

	assert.False(t, p.Available())
	_, err := p.ReadByte()
	assert.ErrorIs(t, err, ErrNoData)
	assert.NoError(t, p.Err())

	require.NoError(t, p.Close())
	assert.True(t, stopped(p))
}

func TestPort_ReadErrorAfterData(t *testing.T) {
	pr, pw := io.Pipe()
	p := newPort("test", &pipeDevice{PipeReader: pr}, nil, time.Second)
	defer p.Close()

	errIO := errors.New("input/output error")
	go func() {
		_, _ = pw.Write([]byte{0xB5, 0x62})
		_ = pw.CloseWithError(errIO)
	}()

	require.Eventually(t, func() bool { return p.Err() != nil }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, p.Err(), errIO)
	assert.True(t, stopped(p))

	// принятые до ошибки байты отдаются первыми
	b, err := p.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xB5), b)
	b, err = p.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x62), b)

	_, err = p.ReadByte()
	assert.ErrorIs(t, err, errIO)
}

func TestPort_Disconnect(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"tarm hangup", io.EOF},
		{"bugst hangup", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &emptyDevice{err: tt.err}
			p := newPort("test", dev, nil, 100*time.Millisecond)
			defer p.Close()

			require.Eventually(t, func() bool {
				return errors.Is(p.Err(), ErrDisconnected)
			}, time.Second, 5*time.Millisecond)
			require.Eventually(t, func() bool { return stopped(p) }, time.Second, 5*time.Millisecond)
			assert.Equal(t, int64(maxFastEmptyReads), dev.reads.Load())

			_, err := p.ReadByte()
			assert.ErrorIs(t, err, ErrDisconnected)
		})
	}
}

func TestPort_ReadTimeoutIsNotDisconnect(t *testing.T) {
	dev := &emptyDevice{delay: 20 * time.Millisecond, err: io.EOF}
	p := newPort("test", dev, nil, 20*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.NoError(t, p.Err())
	assert.False(t, stopped(p))
	assert.GreaterOrEqual(t, dev.reads.Load(), int64(maxFastEmptyReads))

	require.NoError(t, p.Close())
	assert.True(t, stopped(p))
}

func TestPort_CloseIdempotent(t *testing.T) {
	dev := &emptyDevice{delay: 10 * time.Millisecond, err: io.EOF}
	p := newPort("test", dev, nil, 10*time.Millisecond)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, stopped(p))
	assert.Equal(t, int64(1), dev.closes.Load())

	var nilPort *Port
	assert.NoError(t, nilPort.Close())
}

func TestPort_WriteAndFlush(t *testing.T) {
	t.Run("no drain", func(t *testing.T) {
		pr, _ := io.Pipe()
		dev := &pipeDevice{PipeReader: pr}
		p := newPort("test", dev, nil, time.Second)
		defer p.Close()
		require.NoError(t, p.Write(SleepFrame))
		assert.NoError(t, p.Flush())
		assert.Equal(t, SleepFrame, dev.Written())
		assert.Equal(t, "test", p.Device())
	})

	t.Run("drain", func(t *testing.T) {
		drains := 0
		pr, _ := io.Pipe()
		p := newPort("test", &pipeDevice{PipeReader: pr}, func() error {
			drains++
			return nil
		}, time.Second)
		defer p.Close()
		require.NoError(t, p.Write(WakeFrame))
		require.NoError(t, p.Flush())
		assert.Equal(t, 1, drains)
	})
}
