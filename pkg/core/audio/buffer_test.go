package audio

import (
	"bytes"
	"math"
	"testing"
	"time"
)

func TestBuffer_WriteTake(t *testing.T) {
	b := NewBuffer(CaptureFormat(), time.Second)
	b.Write([]byte{1, 2, 3, 4})
	b.Write([]byte{5, 6})

	if got := b.TakeUpTo(3); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("take = %v", got)
	}
	if got := b.TakeUpTo(10); !bytes.Equal(got, []byte{4, 5, 6}) {
		t.Fatalf("take = %v", got)
	}
	if got := b.TakeUpTo(1); got != nil {
		t.Fatalf("take from empty = %v, want nil", got)
	}
}

func TestBuffer_TrimsOldestWhenFull(t *testing.T) {
	// 1ms of 16kHz mono s16 is 32 bytes.
	b := NewBuffer(CaptureFormat(), time.Millisecond)
	first := bytes.Repeat([]byte{1}, 32)
	second := bytes.Repeat([]byte{2}, 16)
	b.Write(first)
	b.Write(second)

	if b.Len() != 32 {
		t.Fatalf("len = %d, want 32", b.Len())
	}
	got := b.TakeUpTo(32)
	// The oldest 16 bytes of the first write were discarded.
	if !bytes.Equal(got[:16], first[:16]) || !bytes.Equal(got[16:], second) {
		t.Fatalf("buffer kept wrong window: %v", got)
	}
}

func TestRMSEnergy(t *testing.T) {
	if e := RMSEnergy(nil); e != 0 {
		t.Fatalf("empty energy = %v, want 0", e)
	}

	// Constant full-scale positive signal has RMS ~1.0.
	pcm := make([]byte, 0, 200)
	for i := 0; i < 100; i++ {
		pcm = append(pcm, 0xff, 0x7f)
	}
	if e := RMSEnergy(pcm); math.Abs(e-1.0) > 0.001 {
		t.Fatalf("full-scale energy = %v, want ~1.0", e)
	}
}

func TestPeakAmplitude(t *testing.T) {
	pcm := EncodePCM16([]float32{0.1, -0.5, 0.25})
	if p := PeakAmplitude(pcm); math.Abs(p-0.5) > 0.001 {
		t.Fatalf("peak = %v, want ~0.5", p)
	}
	if p := PeakAmplitude(nil); p != 0 {
		t.Fatalf("empty peak = %v, want 0", p)
	}
}
