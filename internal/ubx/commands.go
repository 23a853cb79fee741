package ubx

// Готовые кадры управления приёмником (байты в порядке передачи).
var (
	// SleepFrame — CFG-PWR "STOP": перевод приёмника в backup
	SleepFrame = []byte{0xB5, 0x62, 0x06, 0x57, 0x08, 0x00, 0x01, 0x00, 0x00, 0x00, 0x50, 0x4F, 0x54, 0x53, 0xAC, 0x85}
	// WakeFrame — CFG-PWR "RUN"
	WakeFrame = []byte{0xB5, 0x62, 0x06, 0x57, 0x08, 0x00, 0x01, 0x00, 0x00, 0x00, 0x20, 0x4E, 0x55, 0x52, 0x7B, 0xC3}
	// PollNavPosllhFrame — запрос одного NAV-POSLLH (пустой payload)
	PollNavPosllhFrame = EncodePacket(ClassNAV, IDNAVPOSLLH, nil)
)

// NMEA talker message IDs, вывод которых отключается при конфигурации
const (
	NMEAGGA = 0x00
	NMEAGLL = 0x01
	NMEAGSA = 0x02
	NMEAGSV = 0x03
	NMEARMC = 0x04
	NMEAVTG = 0x05
)

// DisableNMEAFrame собирает CFG-MSG с нулевой частотой для NMEA сообщения msgID
func DisableNMEAFrame(msgID uint8) []byte {
	return EncodePacket(ClassCFG, IDCFGMSG, []byte{ClassNMEA, msgID, 0x00})
}

// Command — команда приёмнику
type Command int

const (
	CmdConfigure Command = iota
	CmdSleep
	CmdWake
	CmdPollPosition
)

func (c Command) String() string {
	switch c {
	case CmdConfigure:
		return "configure"
	case CmdSleep:
		return "sleep"
	case CmdWake:
		return "wake"
	case CmdPollPosition:
		return "poll_position"
	default:
		return "unknown"
	}
}

// Frames возвращает кадры команды в порядке отправки.
// Configure — шесть CFG-MSG (по одному на talker ID 0x00..0x05).
func (c Command) Frames() [][]byte {
	switch c {
	case CmdConfigure:
		frames := make([][]byte, 0, NMEAVTG+1)
		for id := uint8(NMEAGGA); id <= NMEAVTG; id++ {
			frames = append(frames, DisableNMEAFrame(id))
		}
		return frames
	case CmdSleep:
		return [][]byte{SleepFrame}
	case CmdWake:
		return [][]byte{WakeFrame}
	case CmdPollPosition:
		return [][]byte{PollNavPosllhFrame}
	default:
		return nil
	}
}
