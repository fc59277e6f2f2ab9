package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAVPCM16(t *testing.T) {
	samples := []int16{0, 1, -1, 32767}

	data, err := EncodeWAVPCM16(samples, 22050)
	require.NoError(t, err)
	require.Len(t, data, 44+len(samples)*2)

	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, uint32(36+8), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[20:22]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[22:24]))
	assert.Equal(t, uint32(22050), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint32(44100), binary.LittleEndian.Uint32(data[28:32]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[32:34]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[34:36]))
	assert.Equal(t, "data", string(data[36:40]))
	assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(data[40:44]))
	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(data[50:52])))
}

func TestEncodeWAVPCM16_InvalidRate(t *testing.T) {
	_, err := EncodeWAVPCM16(nil, 0)
	assert.ErrorIs(t, err, ErrInvalidSampleRate)
}

func TestSine(t *testing.T) {
	s := Sine(440, 2, 22050, 0.5)
	require.Len(t, s, 44100)
	assert.Equal(t, int16(0), s[0])

	var peak int16
	for _, v := range s {
		peak = max(peak, v)
	}
	assert.InDelta(t, 16384, int(peak), 10)

	assert.Nil(t, Sine(440, 0, 22050, 1))
}
