package ubx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() NavPosllh {
	r := NewNavPosllh()
	r.ITOW = 345600000
	r.Lat = 515007590
	r.Lon = -1246310
	r.Height = 78123
	r.HMSL = 32456
	r.HAcc = 4200
	r.VAcc = 6100
	return r
}

func TestNavPosllh_MarshalDecode(t *testing.T) {
	r := sampleRecord()
	b := r.Marshal()
	require.Len(t, b, NavPosllhSize)
	assert.Equal(t, []byte{0x01, 0x02, 0x1C, 0x00}, b[:4])

	got, err := DecodeNavPosllh(b)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestDecodeNavPosllh_Short(t *testing.T) {
	_, err := DecodeNavPosllh(make([]byte, NavPosllhSize-1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShortPayload))
}

func TestNavPosllh_Frame(t *testing.T) {
	f := sampleRecord().Frame()
	require.Len(t, f, 2+NavPosllhSize+2)
	assert.True(t, VerifyChecksum(f))
	h, ok := ParseHeader(f)
	require.True(t, ok)
	assert.Equal(t, uint8(ClassNAV), h.Class)
	assert.Equal(t, uint8(IDNAVPOSLLH), h.ID)
	assert.Equal(t, uint16(NavPosllhPayloadLen), h.Length)
}

func TestNavPosllh_Units(t *testing.T) {
	r := sampleRecord()
	assert.InDelta(t, 51.500759, r.LatDeg(), 1e-9)
	assert.InDelta(t, -0.124631, r.LonDeg(), 1e-9)
	assert.InDelta(t, 78.123, r.HeightM(), 1e-9)
	assert.InDelta(t, 32.456, r.HMSLM(), 1e-9)
	assert.InDelta(t, 4.2, r.HAccM(), 1e-9)
	assert.InDelta(t, 6.1, r.VAccM(), 1e-9)
	assert.Equal(t, "http://maps.google.com/?q=51.50075900,-0.12463100", r.MapsURL())
}
