package live

import (
	"testing"

	"github.com/kornella/anywaa/pkg/core/audio"
)

func TestDecodeServerFrame_Audio(t *testing.T) {
	pcm := audio.EncodePCM16([]float32{0.1, -0.1, 0.2})
	frame := []byte(`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"` +
		audio.EncodeBase64(pcm) + `"}}]}}}`)

	events, err := decodeServerFrame(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev, ok := events[0].(AudioEvent)
	if !ok {
		t.Fatalf("event = %T, want AudioEvent", events[0])
	}
	if len(ev.Data) != len(pcm) {
		t.Fatalf("audio len = %d, want %d", len(ev.Data), len(pcm))
	}
}

func TestDecodeServerFrame_ControlSignals(t *testing.T) {
	events, err := decodeServerFrame([]byte(`{"serverContent":{"interrupted":true,"turnComplete":true}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if _, ok := events[0].(InterruptedEvent); !ok {
		t.Fatalf("first event = %T, want InterruptedEvent", events[0])
	}
	if _, ok := events[1].(TurnCompleteEvent); !ok {
		t.Fatalf("second event = %T, want TurnCompleteEvent", events[1])
	}
}

func TestDecodeServerFrame_IgnoresNonContent(t *testing.T) {
	events, err := decodeServerFrame([]byte(`{"usageMetadata":{"promptTokenCount":3}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("got %d events, want 0", len(events))
	}
}

func TestDecodeServerFrame_RejectsRateMismatch(t *testing.T) {
	frame := []byte(`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=16000","data":"AAA="}}]}}}`)
	if _, err := decodeServerFrame(frame); err == nil {
		t.Fatal("expected error for mismatched inbound rate")
	}
}

func TestDecodeServerFrame_RejectsMalformedJSON(t *testing.T) {
	if _, err := decodeServerFrame([]byte(`{"serverContent":`)); err == nil {
		t.Fatal("expected error for malformed frame")
	}
}

func TestRateFromMIME(t *testing.T) {
	cases := []struct {
		mime string
		want int
	}{
		{"audio/pcm;rate=24000", 24000},
		{"audio/pcm; rate=16000", 16000},
		{"audio/pcm", audio.PlaybackRate},
		{"", audio.PlaybackRate},
		{"audio/pcm;rate=bogus", 0},
	}
	for _, c := range cases {
		if got := rateFromMIME(c.mime); got != c.want {
			t.Fatalf("rateFromMIME(%q) = %d, want %d", c.mime, got, c.want)
		}
	}
}
