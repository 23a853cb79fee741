package gpsloop

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TwoToneEddy/gpsTestOnUno/internal/config"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/gpssim"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/ubx"
)

// testConsole отдаёт заданные команды один раз и копит вывод
type testConsole struct {
	mu   sync.Mutex
	keys []byte
	out  bytes.Buffer
}

func (c *testConsole) Keys() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.keys
	c.keys = nil
	return k
}

func (c *testConsole) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

func (c *testConsole) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

type failingDevice struct {
	simDevice
	err error
}

func (d failingDevice) Err() error { return d.err }

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.Controller.IdleInterval = "1ms"
	cfg.Controller.PollInterval = "1ms"
	cfg.Controller.SettleTime = "0s"
	return cfg
}

func TestLoop_PositionRequest(t *testing.T) {
	sim := gpssim.New(gpssim.DefaultOptions())
	con := &testConsole{keys: []byte("p")}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Loop(ctx, fastConfig(), simDevice{sim}, con) }()

	require.Eventually(t, func() bool {
		return strings.Contains(con.String(), "maps.google.com")
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))

	out := con.String()
	assert.Contains(t, out, "Got: p")
	assert.Contains(t, out, "Requesting position...")
	assert.Contains(t, out, " hAcc: ")
	for id := uint8(ubx.NMEAGGA); id <= ubx.NMEAVTG; id++ {
		assert.True(t, sim.NMEADisabled(id), "NMEA id %d", id)
	}
	assert.Greater(t, sim.Polls(), 1)
}

func TestLoop_SleepsWithoutRequest(t *testing.T) {
	sim := gpssim.New(gpssim.DefaultOptions())
	con := &testConsole{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Loop(ctx, fastConfig(), simDevice{sim}, con) }()

	require.Eventually(t, func() bool { return !sim.Awake() }, 5*time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Zero(t, sim.Polls())
	assert.Empty(t, con.String())
}

func TestLoop_StopsOnSerialError(t *testing.T) {
	dev := failingDevice{
		simDevice: simDevice{gpssim.New(gpssim.DefaultOptions())},
		err:       errors.New("device unplugged"),
	}
	err := Loop(context.Background(), fastConfig(), dev, &testConsole{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unplugged")
}

func TestOpenDevice_Sim(t *testing.T) {
	cfg := config.Default()
	cfg.Sim = true
	dev, err := OpenDevice(cfg)
	require.NoError(t, err)
	defer dev.Close()
	assert.False(t, dev.Available())
}
