package receiver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// crsfFrame packs 16 raw CRSF channel values into a complete RC frame.
func crsfFrame(values [CRSF_NUM_CHANNELS]uint16) []byte {
	payload := make([]byte, CRSF_RC_PAYLOAD_LEN)
	var bits uint
	for _, v := range values {
		for i := uint(0); i < 11; i++ {
			if v&(1<<i) != 0 {
				payload[(bits+i)/8] |= 1 << ((bits + i) % 8)
			}
		}
		bits += 11
	}
	body := append([]byte{CRSF_FRAMETYPE_RC_CHANNELS}, payload...)
	frame := []byte{CRSF_FLIGHT_CONTROLLER, byte(len(body) + 1)}
	frame = append(frame, body...)
	return append(frame, crc8(body))
}

func feedAll(p FrameParser, data []byte, now uint32) int {
	n := 0
	for _, b := range data {
		if p.Feed(b, now) {
			n++
		}
	}
	return n
}

func TestCRSFParser_DecodesChannels(t *testing.T) {
	var values [CRSF_NUM_CHANNELS]uint16
	for i := range values {
		values[i] = CRSF_CHANNEL_VALUE_MID
	}
	values[0] = CRSF_CHANNEL_VALUE_MIN
	values[3] = CRSF_CHANNEL_VALUE_MAX

	p := NewCRSFParser()
	// Leading noise must be skipped.
	data := append([]byte{0x00, 0x13, 0x55}, crsfFrame(values)...)
	require.Equal(t, 1, feedAll(p, data, 42))

	assert.Equal(t, uint16(1000), p.Channel(0).ReadChannel())
	assert.Equal(t, uint16(1500), p.Channel(1).ReadChannel())
	assert.Equal(t, uint16(2000), p.Channel(3).ReadChannel())
	assert.False(t, p.Channel(0).Stale(100, 1000))

	frames, bad := p.Stats()
	assert.Equal(t, uint32(1), frames)
	assert.Equal(t, uint32(0), bad)
}

func TestCRSFParser_CapturedFrame(t *testing.T) {
	// All sticks centred, captured from an ELRS receiver.
	packet := []byte{
		0xc8, 0x18, 0x16, 0xe0, 0x03, 0x1f, 0xf8, 0xc0, 0x07, 0x3e, 0xf0, 0x81, 0x0f, 0x7c,
		0xe0, 0x03, 0x1f, 0xf8, 0xc0, 0x07, 0x3e, 0xf0, 0x81, 0x0f, 0x7c, 0xad,
	}
	p := NewCRSFParser()
	require.Equal(t, 1, feedAll(p, packet, 1))
	for i := 0; i < p.NumChannels(); i++ {
		assert.Equal(t, uint16(1500), p.Channel(i).ReadChannel(), "channel %d", i)
	}
}

func TestCRSFParser_StickEndpointsDecodeValid(t *testing.T) {
	for _, raw := range []uint16{CRSF_CHANNEL_VALUE_MIN, CRSF_CHANNEL_VALUE_MAX} {
		var values [CRSF_NUM_CHANNELS]uint16
		for i := range values {
			values[i] = raw
		}
		p := NewCRSFParser()
		require.Equal(t, 1, feedAll(p, crsfFrame(values), 10))

		d, err := NewDecoder(DefaultDecoderConfig(), p.Channel(0), p.Channel(1), p.Channel(2), p.Channel(3))
		require.NoError(t, err)
		cmd := d.Decode(20)
		assert.True(t, cmd.Valid, "raw %d: %s on %s", raw, cmd.Fault, cmd.Axis)
	}

	var values [CRSF_NUM_CHANNELS]uint16
	values[0] = CRSF_CHANNEL_VALUE_MIN
	p := NewCRSFParser()
	feedAll(p, crsfFrame(values), 10)
	d, err := NewDecoder(DefaultDecoderConfig(), p.Channel(0), p.Channel(1), p.Channel(2), p.Channel(3))
	require.NoError(t, err)
	assert.Equal(t, float32(0), d.Decode(20).Value.Thrust)
}

func TestCRSFParser_BadCRCKeepsChannels(t *testing.T) {
	var values [CRSF_NUM_CHANNELS]uint16
	for i := range values {
		values[i] = CRSF_CHANNEL_VALUE_MID
	}
	p := NewCRSFParser()
	require.Equal(t, 1, feedAll(p, crsfFrame(values), 0))

	values[0] = CRSF_CHANNEL_VALUE_MAX
	frame := crsfFrame(values)
	frame[len(frame)-1] ^= 0xFF
	assert.Equal(t, 0, feedAll(p, frame, 0))
	assert.Equal(t, uint16(1500), p.Channel(0).ReadChannel())

	_, bad := p.Stats()
	assert.Equal(t, uint32(1), bad)

	// The parser recovers on the next good frame.
	assert.Equal(t, 1, feedAll(p, crsfFrame(values), 0))
	assert.Equal(t, uint16(2000), p.Channel(0).ReadChannel())
}

func TestCRSFParser_IgnoresOtherFrameTypes(t *testing.T) {
	body := []byte{0x14, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	frame := append([]byte{CRSF_FLIGHT_CONTROLLER, byte(len(body) + 1)}, body...)
	frame = append(frame, crc8(body))

	p := NewCRSFParser()
	assert.Equal(t, 0, feedAll(p, frame, 0))
	frames, bad := p.Stats()
	assert.Zero(t, frames)
	assert.Zero(t, bad)
	assert.True(t, p.Channel(0).Stale(0, 1000))
}

func ibusFrame(channels [IBUS_NUM_CHANNELS]uint16) []byte {
	frame := []byte{IBUS_HEADER1, IBUS_HEADER2}
	for _, c := range channels {
		frame = append(frame, byte(c), byte(c>>8))
	}
	sum := uint16(0xFFFF)
	for _, b := range frame {
		sum -= uint16(b)
	}
	return append(frame, byte(sum), byte(sum>>8))
}

func TestIBusParser_DecodesChannels(t *testing.T) {
	var channels [IBUS_NUM_CHANNELS]uint16
	for i := range channels {
		channels[i] = uint16(1000 + 50*i)
	}
	frame := ibusFrame(channels)
	require.Len(t, frame, IBUS_PACKET_SIZE)

	p := NewIBusParser()
	require.Equal(t, 1, feedAll(p, append([]byte{0x20, 0x11}, frame...), 7))
	for i := range channels {
		assert.Equal(t, channels[i], p.Channel(i).ReadChannel())
	}

	frame[5] ^= 0x01
	assert.Equal(t, 0, feedAll(p, frame, 8))
	frames, bad := p.Stats()
	assert.Equal(t, uint32(1), frames)
	assert.Equal(t, uint32(1), bad)
	assert.Equal(t, channels[1], p.Channel(1).ReadChannel())
}
