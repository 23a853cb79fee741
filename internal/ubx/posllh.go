package ubx

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// NavPosllhSize — размер записи NAV-POSLLH вместе с class, id и length.
// Декодер считает контрольную сумму именно по этому блоку.
const NavPosllhSize = 32

// NavPosllhPayloadLen — значение поля length в заголовке NAV-POSLLH
const NavPosllhPayloadLen = NavPosllhSize - 4

// Смещения полей внутри записи (little-endian)
const (
	posllhClass  = 0  // uint8
	posllhID     = 1  // uint8
	posllhLength = 2  // uint16
	posllhITOW   = 4  // uint32, мс
	posllhLon    = 8  // int32, 1e-7 град
	posllhLat    = 12 // int32, 1e-7 град
	posllhHeight = 16 // int32, мм
	posllhHMSL   = 20 // int32, мм
	posllhHAcc   = 24 // uint32, мм
	posllhVAcc   = 28 // uint32, мм
)

// ErrShortPayload — буфер короче записи NAV-POSLLH
var ErrShortPayload = errors.New("ubx: short NAV-POSLLH payload")

// NavPosllh — декодированная запись UBX-NAV-POSLLH
type NavPosllh struct {
	Class  uint8
	ID     uint8
	Length uint16
	ITOW   uint32 // GPS time of week, мс
	Lon    int32  // 1e-7 град
	Lat    int32  // 1e-7 град
	Height int32  // высота над эллипсоидом, мм
	HMSL   int32  // высота над уровнем моря, мм
	HAcc   uint32 // оценка горизонтальной точности, мм
	VAcc   uint32 // оценка вертикальной точности, мм
}

// DecodeNavPosllh читает поля записи по смещениям из сырого буфера.
// Буфер начинается с class (без sync bytes).
func DecodeNavPosllh(b []byte) (NavPosllh, error) {
	if len(b) < NavPosllhSize {
		return NavPosllh{}, fmt.Errorf("%w: %d bytes", ErrShortPayload, len(b))
	}
	le := binary.LittleEndian
	return NavPosllh{
		Class:  b[posllhClass],
		ID:     b[posllhID],
		Length: le.Uint16(b[posllhLength:]),
		ITOW:   le.Uint32(b[posllhITOW:]),
		Lon:    int32(le.Uint32(b[posllhLon:])),
		Lat:    int32(le.Uint32(b[posllhLat:])),
		Height: int32(le.Uint32(b[posllhHeight:])),
		HMSL:   int32(le.Uint32(b[posllhHMSL:])),
		HAcc:   le.Uint32(b[posllhHAcc:]),
		VAcc:   le.Uint32(b[posllhVAcc:]),
	}, nil
}

// Marshal сериализует запись в 32 байта (class, id, length, body)
func (r NavPosllh) Marshal() []byte {
	b := make([]byte, NavPosllhSize)
	le := binary.LittleEndian
	b[posllhClass] = r.Class
	b[posllhID] = r.ID
	le.PutUint16(b[posllhLength:], r.Length)
	le.PutUint32(b[posllhITOW:], r.ITOW)
	le.PutUint32(b[posllhLon:], uint32(r.Lon))
	le.PutUint32(b[posllhLat:], uint32(r.Lat))
	le.PutUint32(b[posllhHeight:], uint32(r.Height))
	le.PutUint32(b[posllhHMSL:], uint32(r.HMSL))
	le.PutUint32(b[posllhHAcc:], r.HAcc)
	le.PutUint32(b[posllhVAcc:], r.VAcc)
	return b
}

// Frame собирает полный кадр: sync + запись + checksum.
// Class/ID/Length берутся из самой записи, как их передаёт приёмник.
func (r NavPosllh) Frame() []byte {
	body := r.Marshal()
	frame := make([]byte, 0, 2+len(body)+2)
	frame = append(frame, Sync1, Sync2)
	frame = append(frame, body...)
	ckA, ckB := Checksum(body)
	return append(frame, ckA, ckB)
}

// NewNavPosllh возвращает запись с правильными class/id/length
func NewNavPosllh() NavPosllh {
	return NavPosllh{Class: ClassNAV, ID: IDNAVPOSLLH, Length: NavPosllhPayloadLen}
}

// LatDeg — широта в градусах
func (r NavPosllh) LatDeg() float64 { return float64(r.Lat) / 1e7 }

// LonDeg — долгота в градусах
func (r NavPosllh) LonDeg() float64 { return float64(r.Lon) / 1e7 }

// HeightM — высота над эллипсоидом в метрах
func (r NavPosllh) HeightM() float64 { return float64(r.Height) / 1000 }

// HMSLM — высота над уровнем моря в метрах
func (r NavPosllh) HMSLM() float64 { return float64(r.HMSL) / 1000 }

// HAccM — горизонтальная точность в метрах
func (r NavPosllh) HAccM() float64 { return float64(r.HAcc) / 1000 }

// VAccM — вертикальная точность в метрах
func (r NavPosllh) VAccM() float64 { return float64(r.VAcc) / 1000 }

// MapsURL — ссылка на точку в Google Maps (8 знаков после запятой)
func (r NavPosllh) MapsURL() string {
	return fmt.Sprintf("http://maps.google.com/?q=%.8f,%.8f", r.LatDeg(), r.LonDeg())
}
