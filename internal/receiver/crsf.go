package receiver

// CRSF (Crossfire) receiver frames, as used by TBS Crossfire and ExpressLRS.

const (
	CRSF_FLIGHT_CONTROLLER     = 0xC8
	CRSF_FRAMETYPE_RC_CHANNELS = 0x16
	CRSF_MAX_FRAME_LEN         = 64
	CRSF_RC_PAYLOAD_LEN        = 22
	CRSF_NUM_CHANNELS          = 16

	CRSF_CHANNEL_VALUE_MIN = 172  // 988us
	CRSF_CHANNEL_VALUE_MID = 992  // 1500us
	CRSF_CHANNEL_VALUE_MAX = 1811 // 2011us

	CRSF_BAUD_RATE = 420000
)

type crsfState int

const (
	crsfSync crsfState = iota
	crsfLength
	crsfBody
)

// CRSFParser decodes a CRSF byte stream one byte at a time. It keeps no
// reference to the input and never blocks, so it can be fed straight from a
// UART read loop.
type CRSFParser struct {
	Channels [CRSF_NUM_CHANNELS]Cell

	state  crsfState
	length uint8
	body   [CRSF_MAX_FRAME_LEN]byte
	index  uint8

	frames    uint32
	badFrames uint32
}

// NewCRSFParser returns a parser waiting for a sync byte.
func NewCRSFParser() *CRSFParser {
	return &CRSFParser{}
}

// Channel returns the cell for channel n (0 based).
func (p *CRSFParser) Channel(n int) *Cell {
	return &p.Channels[n]
}

// NumChannels returns the number of channels in a frame.
func (p *CRSFParser) NumChannels() int {
	return CRSF_NUM_CHANNELS
}

// Stats returns the count of accepted and rejected frames.
func (p *CRSFParser) Stats() (frames, bad uint32) {
	return p.frames, p.badFrames
}

// Feed consumes one byte. It returns true when the byte completed a valid
// RC channels frame and the cells were updated.
func (p *CRSFParser) Feed(b byte, now uint32) bool {
	switch p.state {
	case crsfSync:
		if b == CRSF_FLIGHT_CONTROLLER {
			p.state = crsfLength
		}
	case crsfLength:
		// length counts type, payload and CRC.
		if b < 2 || b > CRSF_MAX_FRAME_LEN-2 {
			p.reset()
			return false
		}
		p.length = b
		p.index = 0
		p.state = crsfBody
	case crsfBody:
		p.body[p.index] = b
		p.index++
		if p.index < p.length {
			return false
		}
		frame := p.body[:p.length-1]
		ok := p.accept(frame, b, now)
		p.reset()
		return ok
	}
	return false
}

func (p *CRSFParser) accept(frame []byte, crc byte, now uint32) bool {
	if crc8(frame) != crc {
		p.badFrames++
		return false
	}
	if frame[0] != CRSF_FRAMETYPE_RC_CHANNELS || len(frame)-1 != CRSF_RC_PAYLOAD_LEN {
		// Link statistics and other frames are valid but of no use here.
		return false
	}
	p.unpack(frame[1:], now)
	p.frames++
	return true
}

func (p *CRSFParser) reset() {
	p.state = crsfSync
	p.index = 0
	p.length = 0
}

// unpack extracts the 16 packed 11-bit channel values.
func (p *CRSFParser) unpack(payload []byte, now uint32) {
	var bitsMerged uint
	var readValue uint32
	var readByteIndex int
	for n := 0; n < CRSF_NUM_CHANNELS; n++ {
		for bitsMerged < 11 {
			readValue |= uint32(payload[readByteIndex]) << bitsMerged
			readByteIndex++
			bitsMerged += 8
		}
		p.Channels[n].store(crsfToMicros(uint16(readValue&0x07FF)), now)
		readValue >>= 11
		bitsMerged -= 11
	}
}

// crsfToMicros converts a CRSF channel value to the equivalent pulse width.
// Full stick travel (172..1811) maps to 988..2011us, which is clamped to
// the nominal 1000..2000us so stick endpoints stay inside the decoder
// bounds.
func crsfToMicros(v uint16) uint16 {
	us := (int32(v)-CRSF_CHANNEL_VALUE_MID)*5/8 + 1500
	return uint16(constrain(us, MIN_PULSE_WIDTH_US, MAX_PULSE_WIDTH_US))
}

// crc8 computes the CRC8 DVB-S2 checksum used by CRSF.
func crc8(data []byte) byte {
	crc := byte(0x00)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ 0xD5
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
