package stt

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

const wavHeaderSize = 44

// WrapPCMAsWAV wraps raw little-endian signed PCM in a canonical 44-byte WAV
// header. Whisper only accepts file uploads, so raw captures need one.
func WrapPCMAsWAV(pcmData []byte, sampleRate, channels, bitsPerSample int) []byte {
	dataSize := uint32(len(pcmData))
	blockAlign := uint16(channels * bitsPerSample / 8)
	byteRate := uint32(sampleRate) * uint32(blockAlign)

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcmData))

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, struct {
		ChunkSize     uint32
		AudioFormat   uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}{16, 1, uint16(channels), uint32(sampleRate), byteRate, blockAlign, uint16(bitsPerSample)})

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, dataSize)
	buf.Write(pcmData)

	return buf.Bytes()
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// PCMDuration returns the play time of raw PCM data.
func PCMDuration(size, sampleRate, channels, bitsPerSample int) time.Duration {
	bytesPerSecond := sampleRate * channels * bitsPerSample / 8
	if bytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(size) / float64(bytesPerSecond) * float64(time.Second))
}

// PCM16Level returns the RMS level of 16-bit little-endian PCM, normalised
// to 0..1. Captures below a small threshold contain no speech.
func PCM16Level(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / math.MaxInt16
		sum += s * s
	}
	return math.Sqrt(sum / float64(samples))
}
