package audio

import "time"

// Standard sample rates for a voice session. Capture and playback run at
// different rates; the remote service consumes 16kHz and produces 24kHz.
const (
	CaptureRate  = 16000
	PlaybackRate = 24000
)

// Format specifies PCM audio shape.
type Format struct {
	// SampleRate in Hz. Common values: 16000, 24000, 44100, 48000.
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// BitsPerSample: typically 16 for PCM.
	BitsPerSample int
}

// CaptureFormat returns the microphone-side format (16kHz mono s16).
func CaptureFormat() Format {
	return Format{SampleRate: CaptureRate, Channels: 1, BitsPerSample: 16}
}

// PlaybackFormat returns the speaker-side format (24kHz mono s16).
func PlaybackFormat() Format {
	return Format{SampleRate: PlaybackRate, Channels: 1, BitsPerSample: 16}
}

// BytesPerSecond returns the audio byte rate.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * (f.BitsPerSample / 8)
}

// DurationFor returns the playback duration of the given byte count.
func (f Format) DurationFor(bytes int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 || bytes <= 0 {
		return 0
	}
	return time.Duration(bytes) * time.Second / time.Duration(bps)
}

// BytesFor returns the byte count covering the given duration.
func (f Format) BytesFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(int64(f.BytesPerSecond()) * int64(d) / int64(time.Second))
}
