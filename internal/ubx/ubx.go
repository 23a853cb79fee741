// Package ubx — протокол u-blox UBX: контрольная сумма, сборка пакетов,
// потоковый декодер NAV-POSLLH и командные кадры управления питанием.
package ubx

import "encoding/binary"

// Sync bytes для UBX протокола
const (
	Sync1 = 0xB5
	Sync2 = 0x62
)

// Header — sync bytes, с которых начинается каждый UBX пакет
var Header = [2]byte{Sync1, Sync2}

// Классы и ID сообщений
const (
	ClassNAV    = 0x01
	IDNAVPOSLLH = 0x02 // NAV-POSLLH: geodetic position + accuracy

	ClassCFG = 0x06
	IDCFGMSG = 0x01 // CFG-MSG: частота вывода сообщения
	IDCFGPWR = 0x57 // CFG-PWR: run/stop приёмника

	ClassNMEA = 0xF0 // класс стандартных NMEA сообщений в CFG-MSG
)

// headerLen — sync(2) + class + id + length(2)
const headerLen = 6

// PacketHeader — заголовок UBX сообщения (6 байт)
type PacketHeader struct {
	Class  uint8
	ID     uint8
	Length uint16
}

// Checksum вычисляет UBX контрольную сумму (8-битный Fletcher, без sync bytes)
func Checksum(data []byte) (ckA, ckB uint8) {
	for _, b := range data {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

// EncodePacket собирает полный UBX пакет: header + payload + checksum
func EncodePacket(class, id uint8, payload []byte) []byte {
	length := uint16(len(payload))
	buf := make([]byte, 0, headerLen+len(payload)+2)
	buf = append(buf, Sync1, Sync2, class, id)
	buf = binary.LittleEndian.AppendUint16(buf, length)
	buf = append(buf, payload...)
	ckA, ckB := Checksum(buf[2:])
	buf = append(buf, ckA, ckB)
	return buf
}

// ParseHeader парсит заголовок из буфера (минимум 6 байт)
func ParseHeader(buf []byte) (h PacketHeader, ok bool) {
	if len(buf) < headerLen || buf[0] != Sync1 || buf[1] != Sync2 {
		return PacketHeader{}, false
	}
	h.Class = buf[2]
	h.ID = buf[3]
	h.Length = binary.LittleEndian.Uint16(buf[4:6])
	return h, true
}

// VerifyChecksum проверяет контрольную сумму пакета (header + payload + 2 байта checksum)
func VerifyChecksum(packet []byte) bool {
	if len(packet) < headerLen+2 {
		return false
	}
	ckA, ckB := Checksum(packet[2 : len(packet)-2])
	return packet[len(packet)-2] == ckA && packet[len(packet)-1] == ckB
}

// Payload возвращает payload пакета (без header и checksum) или nil,
// если длина в заголовке не совпадает с размером буфера.
func Payload(packet []byte) []byte {
	h, ok := ParseHeader(packet)
	if !ok {
		return nil
	}
	end := headerLen + int(h.Length)
	if len(packet) < end+2 {
		return nil
	}
	return packet[headerLen:end]
}
