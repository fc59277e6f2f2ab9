package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// ErrInvalidSampleRate is returned for non-positive sample rates.
var ErrInvalidSampleRate = errors.New("sample rate must be positive")

// EncodeWAVPCM16 wraps mono PCM16LE samples in a WAV container.
func EncodeWAVPCM16(samples []int16, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWAVPCM16(&buf, samples, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVPCM16 writes mono PCM16LE samples to out as a 44-byte header
// followed by the data chunk.
func WriteWAVPCM16(out io.Writer, samples []int16, sampleRate int) error {
	const (
		numChannels   = 1
		bitsPerSample = 16
		formatPCM     = 1
	)
	if sampleRate <= 0 {
		return ErrInvalidSampleRate
	}

	dataSize := uint32(len(samples) * bitsPerSample / 8)
	header := struct {
		RIFF          [4]byte
		ChunkSize     uint32
		WAVE          [4]byte
		Fmt           [4]byte
		FmtSize       uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataSize      uint32
	}{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   formatPCM,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * numChannels * bitsPerSample / 8),
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      dataSize,
	}

	w := bufio.NewWriter(out)
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, samples); err != nil {
		return err
	}
	return w.Flush()
}

// Sine returns seconds of a mono sine wave at freq Hz, scaled to amplitude
// (0..1) of full scale.
func Sine(freq float64, seconds float64, sampleRate int, amplitude float64) []int16 {
	n := int(seconds * float64(sampleRate))
	if n <= 0 {
		return nil
	}
	amplitude = math.Max(0, math.Min(1, amplitude))
	out := make([]int16, n)
	for i := range out {
		v := math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
		out[i] = int16(math.Round(v * amplitude * math.MaxInt16))
	}
	return out
}
