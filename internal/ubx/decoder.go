package ubx

// DecoderStats — счётчики декодера (для метрик)
type DecoderStats struct {
	Frames         uint64 // кадры с верной контрольной суммой
	ChecksumErrors uint64 // кадры, отброшенные по ckA или ckB
	SyncResets     uint64 // сбросы курсора на sync bytes
}

// Decoder — потоковый разбор кадров NAV-POSLLH по одному байту.
//
// Длина кадра фиксирована: sync(2) + запись NavPosllhSize + checksum(2).
// Поле length внутри записи сохраняется, но на разбор не влияет.
// При любом несовпадении курсор сбрасывается в 0 и разбор продолжается
// со следующего байта; ошибок декодер не возвращает.
type Decoder struct {
	pos   int
	buf   [NavPosllhSize]byte
	ck    [2]byte
	stats DecoderStats
}

// NewDecoder создаёт декодер с курсором в начале кадра
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed обрабатывает один входящий байт. Возвращает (запись, true),
// только когда совпали оба байта контрольной суммы.
func (d *Decoder) Feed(c byte) (NavPosllh, bool) {
	const size = NavPosllhSize

	if d.pos < 2 {
		// Байт 0xB5 на месте 0x62 не считается новым началом кадра.
		if c == Header[d.pos] {
			d.pos++
		} else {
			if d.pos > 0 {
				d.stats.SyncResets++
			}
			d.pos = 0
		}
		return NavPosllh{}, false
	}

	if d.pos-2 < size {
		d.buf[d.pos-2] = c
	}
	d.pos++

	switch {
	case d.pos == size+2:
		d.ck[0], d.ck[1] = Checksum(d.buf[:])
	case d.pos == size+3:
		if c != d.ck[0] {
			d.stats.ChecksumErrors++
			d.pos = 0
		}
	case d.pos == size+4:
		d.pos = 0
		if c == d.ck[1] {
			d.stats.Frames++
			// буфер уже проверен и имеет нужную длину
			rec, _ := DecodeNavPosllh(d.buf[:])
			return rec, true
		}
		d.stats.ChecksumErrors++
	case d.pos > size+4:
		d.pos = 0
	}
	return NavPosllh{}, false
}

// Reset возвращает курсор в начало кадра (счётчики сохраняются)
func (d *Decoder) Reset() {
	d.pos = 0
}

// Stats возвращает копию счётчиков
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}
