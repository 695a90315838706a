// Package audio converts between normalized float samples and the 16-bit
// little-endian PCM wire format used by the live voice service.
package audio

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"
)

// ErrOddLength is returned by DecodePCM16 when the input cannot be a whole
// number of 16-bit samples.
var ErrOddLength = fmt.Errorf("audio: pcm data has odd byte length")

// Chunk is one encoded audio frame ready for transmission: raw little-endian
// 16-bit PCM tagged with a MIME descriptor carrying the sample rate.
type Chunk struct {
	Data     []byte
	MIMEType string
}

// Segment is a decoded buffer of normalized samples at a known sample rate.
type Segment struct {
	Samples []float32
	Rate    int
}

// Duration returns the playback duration of the segment.
func (s Segment) Duration() time.Duration {
	if s.Rate <= 0 || len(s.Samples) == 0 {
		return 0
	}
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(s.Rate)
}

// MIMEType returns the PCM MIME descriptor for the given sample rate,
// for example "audio/pcm;rate=16000".
func MIMEType(rate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", rate)
}

// EncodePCM16 converts normalized float samples to little-endian 16-bit PCM.
// Samples outside [-1, 1] are clamped rather than wrapped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int(math.Round(float64(s) * 32768))
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// DecodePCM16 converts little-endian 16-bit PCM to normalized float samples.
func DecodePCM16(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, ErrOddLength
	}
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		samples[i] = float32(v) / 32768.0
	}
	return samples, nil
}

// EncodeFrame encodes one captured frame for transmission at the given rate.
func EncodeFrame(samples []float32, rate int) Chunk {
	return Chunk{
		Data:     EncodePCM16(samples),
		MIMEType: MIMEType(rate),
	}
}

// DecodeChunk interprets raw PCM bytes as a segment at the declared output
// rate. No resampling is performed; the producer must already emit audio at
// the target rate.
func DecodeChunk(data []byte, rate int) (Segment, error) {
	samples, err := DecodePCM16(data)
	if err != nil {
		return Segment{}, err
	}
	return Segment{Samples: samples, Rate: rate}, nil
}

// EncodeBase64 converts raw bytes to their text-safe representation for the
// network boundary.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 converts the text-safe representation back to raw bytes.
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
