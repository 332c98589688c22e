package receiver

// FlySky iBus receiver frames (FS-iA6B, FS-A8S).

const (
	IBUS_HEADER1      = 0x20
	IBUS_HEADER2      = 0x40
	IBUS_NUM_CHANNELS = 14
	// Header (2) + Channels (14 * 2) + Checksum (2)
	IBUS_PACKET_SIZE = 2 + IBUS_NUM_CHANNELS*2 + 2

	IBUS_BAUD_RATE = 115200
)

type ibusState int

const (
	waitingForHeader1 ibusState = iota
	waitingForHeader2
	readingPayload
	readingChecksumLow
	readingChecksumHigh
)

// IBusParser decodes an iBus byte stream one byte at a time.
type IBusParser struct {
	Channels [IBUS_NUM_CHANNELS]Cell

	state    ibusState
	payload  [IBUS_NUM_CHANNELS * 2]byte
	index    int
	checksum uint16
	crcLow   byte

	frames    uint32
	badFrames uint32
}

// NewIBusParser returns a parser waiting for the frame header.
func NewIBusParser() *IBusParser {
	return &IBusParser{}
}

// Channel returns the cell for channel n (0 based).
func (p *IBusParser) Channel(n int) *Cell {
	return &p.Channels[n]
}

// NumChannels returns the number of channels in a frame.
func (p *IBusParser) NumChannels() int {
	return IBUS_NUM_CHANNELS
}

// Stats returns the count of accepted and rejected frames.
func (p *IBusParser) Stats() (frames, bad uint32) {
	return p.frames, p.badFrames
}

// Feed consumes one byte and returns true when it completed a frame with a
// valid checksum.
func (p *IBusParser) Feed(b byte, now uint32) bool {
	switch p.state {
	case waitingForHeader1:
		if b == IBUS_HEADER1 {
			p.state = waitingForHeader2
		}
	case waitingForHeader2:
		if b != IBUS_HEADER2 {
			p.state = waitingForHeader1
			return false
		}
		p.index = 0
		p.checksum = 0xFFFF - IBUS_HEADER1 - IBUS_HEADER2
		p.state = readingPayload
	case readingPayload:
		p.payload[p.index] = b
		p.checksum -= uint16(b)
		p.index++
		if p.index == len(p.payload) {
			p.state = readingChecksumLow
		}
	case readingChecksumLow:
		p.crcLow = b
		p.state = readingChecksumHigh
	case readingChecksumHigh:
		p.state = waitingForHeader1
		if uint16(p.crcLow)|uint16(b)<<8 != p.checksum {
			p.badFrames++
			return false
		}
		for i := 0; i < IBUS_NUM_CHANNELS; i++ {
			p.Channels[i].store(uint16(p.payload[2*i])|uint16(p.payload[2*i+1])<<8, now)
		}
		p.frames++
		return true
	}
	return false
}
