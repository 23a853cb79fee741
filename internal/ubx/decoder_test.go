package ubx

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedAll прогоняет поток через декодер и собирает все записи
func feedAll(d *Decoder, stream []byte) []NavPosllh {
	var out []NavPosllh
	for _, c := range stream {
		if rec, ok := d.Feed(c); ok {
			out = append(out, rec)
		}
	}
	return out
}

func TestDecoder_RoundTrip(t *testing.T) {
	r := sampleRecord()
	d := NewDecoder()
	got := feedAll(d, r.Frame())
	require.Len(t, got, 1)
	assert.Equal(t, r, got[0])
	assert.Equal(t, uint64(1), d.Stats().Frames)
}

func TestDecoder_ScenarioHAcc5000(t *testing.T) {
	// всё нулевое, кроме hAcc; class/id/length тоже нулевые
	r := NavPosllh{HAcc: 5000}
	frame := r.Frame()
	assert.Equal(t, []byte{0xBA, 0x6B}, frame[len(frame)-2:])

	got := feedAll(NewDecoder(), frame)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(5000), got[0].HAcc)
	assert.InDelta(t, 5.0, got[0].HAccM(), 1e-9)
}

func TestDecoder_EmitsOnlyOnLastByte(t *testing.T) {
	frame := sampleRecord().Frame()
	d := NewDecoder()
	for i, c := range frame[:len(frame)-1] {
		_, ok := d.Feed(c)
		require.False(t, ok, "byte %d", i)
	}
	_, ok := d.Feed(frame[len(frame)-1])
	assert.True(t, ok)
}

func TestDecoder_NoSyncIsNoop(t *testing.T) {
	d := NewDecoder()
	for i := 0; i < 4096; i++ {
		c := byte(i)
		if c == Sync1 {
			continue
		}
		_, ok := d.Feed(c)
		require.False(t, ok)
	}
	assert.Equal(t, DecoderStats{}, d.Stats())

	// после мусора декодер всё ещё в начале кадра
	got := feedAll(d, sampleRecord().Frame())
	assert.Len(t, got, 1)
}

func TestDecoder_ChecksumMismatch(t *testing.T) {
	t.Run("bad ckA", func(t *testing.T) {
		f := sampleRecord().Frame()
		f[len(f)-2] ^= 0x01
		d := NewDecoder()
		assert.Empty(t, feedAll(d, f))
		assert.Equal(t, uint64(1), d.Stats().ChecksumErrors)
	})
	t.Run("bad ckB", func(t *testing.T) {
		f := sampleRecord().Frame()
		f[len(f)-1] ^= 0x01
		d := NewDecoder()
		assert.Empty(t, feedAll(d, f))
		assert.Equal(t, uint64(1), d.Stats().ChecksumErrors)
	})
	t.Run("corrupt payload", func(t *testing.T) {
		f := sampleRecord().Frame()
		f[10] ^= 0x40
		assert.Empty(t, feedAll(NewDecoder(), f))
	})
	t.Run("recovers on next frame", func(t *testing.T) {
		bad := sampleRecord().Frame()
		bad[len(bad)-1] ^= 0x01
		good := sampleRecord()
		good.HAcc = 1234
		got := feedAll(NewDecoder(), append(bad, good.Frame()...))
		require.Len(t, got, 1)
		assert.Equal(t, uint32(1234), got[0].HAcc)
	})
}

func TestDecoder_Resync(t *testing.T) {
	r := sampleRecord()

	t.Run("leading garbage", func(t *testing.T) {
		stream := append([]byte{0x00, 0x62, 0x13, 0xB5, 0x00, 0xFF}, r.Frame()...)
		got := feedAll(NewDecoder(), stream)
		require.Len(t, got, 1)
		assert.Equal(t, r, got[0])
	})

	t.Run("truncated frame then valid frame", func(t *testing.T) {
		full := r.Frame()
		// обрезанный кадр съедает начало следующего: длина фиксирована
		stream := append([]byte{}, full[:20]...)
		stream = append(stream, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00)
		stream = append(stream, full...)
		got := feedAll(NewDecoder(), stream)
		require.Len(t, got, 1)
		assert.Equal(t, r, got[0])
	})

	t.Run("repeated sync byte drops restart", func(t *testing.T) {
		// B5 B5 62: второй B5 сбрасывает курсор в 0, а 62 уже не sync1
		stream := append([]byte{Sync1}, r.Frame()...)
		got := feedAll(NewDecoder(), stream)
		assert.Empty(t, got)
	})
}

func TestDecoder_RandomNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	d := NewDecoder()

	var want []NavPosllh
	var stream []byte
	for i := 0; i < 200; i++ {
		noise := make([]byte, rng.Intn(64))
		rng.Read(noise)
		for j := range noise {
			// без sync1 шум не может начать ложный кадр
			if noise[j] == Sync1 {
				noise[j] = 0
			}
		}
		stream = append(stream, noise...)

		r := NewNavPosllh()
		r.ITOW = uint32(i)
		r.Lat = rng.Int31()
		r.Lon = -rng.Int31()
		r.HAcc = uint32(rng.Intn(100000))
		want = append(want, r)
		stream = append(stream, r.Frame()...)
	}

	got := feedAll(d, stream)
	assert.Equal(t, want, got)
	assert.Equal(t, uint64(len(want)), d.Stats().Frames)
}

func TestDecoder_ArbitraryBytesNeverYieldBadChecksum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	d := NewDecoder()
	stream := make([]byte, 1<<16)
	rng.Read(stream)
	// подмешиваем sync bytes, чтобы декодер чаще входил в кадр
	for i := 0; i+1 < len(stream); i += 97 {
		stream[i], stream[i+1] = Sync1, Sync2
	}
	var window []byte
	for _, c := range stream {
		window = append(window, c)
		if len(window) > 2+NavPosllhSize+2 {
			window = window[1:]
		}
		if rec, ok := d.Feed(c); ok {
			require.Len(t, window, 2+NavPosllhSize+2)
			assert.True(t, VerifyChecksum(window))
			assert.Equal(t, rec.Marshal(), window[2:2+NavPosllhSize])
		}
	}
}

func TestDecoder_Reset(t *testing.T) {
	f := sampleRecord().Frame()
	d := NewDecoder()
	feedAll(d, f[:10])
	d.Reset()
	got := feedAll(d, f)
	assert.Len(t, got, 1)
}
