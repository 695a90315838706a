package live

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/kornella/anywaa/pkg/core/audio"
)

// fakeTransport lets tests inject inbound events and observe sends.
type fakeTransport struct {
	mu     sync.Mutex
	events chan ServerEvent
	sent   []audio.Chunk
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan ServerEvent, 16)}
}

func (f *fakeTransport) Send(chunk audio.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrSessionClosed
	}
	f.sent = append(f.sent, chunk)
	return nil
}

func (f *fakeTransport) Events() <-chan ServerEvent { return f.events }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// idleSource blocks until closed; the capture loop stays parked in it.
type idleSource struct {
	closed chan struct{}
	once   sync.Once
}

func newIdleSource() *idleSource {
	return &idleSource{closed: make(chan struct{})}
}

func (s *idleSource) ReadBlock(p []float32) (int, error) {
	<-s.closed
	return 0, io.EOF
}

func (s *idleSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *idleSource) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func testDeps(src Source, player Player, tr Transport) Deps {
	return Deps{
		Mic:     func(context.Context) (Source, error) { return src, nil },
		Speaker: func(context.Context) (Player, error) { return player, nil },
		DialFunc: func(context.Context, TransportConfig) (Transport, error) {
			return tr, nil
		},
	}
}

func waitForState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", s.State(), want)
}

func TestOpen_Succeeds(t *testing.T) {
	tr := newFakeTransport()
	s, err := Open(context.Background(), Config{}, testDeps(newIdleSource(), &fakePlayer{}, tr))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if s.State() != StateActive {
		t.Fatalf("state = %v, want ACTIVE", s.State())
	}
}

func TestOpen_MicPermissionDenied(t *testing.T) {
	permErr := errors.New("microphone permission denied")
	player := &fakePlayer{}
	deps := Deps{
		Mic:     func(context.Context) (Source, error) { return nil, permErr },
		Speaker: func(context.Context) (Player, error) { return player, nil },
		DialFunc: func(context.Context, TransportConfig) (Transport, error) {
			t.Fatal("dial must not run when the microphone is unavailable")
			return nil, nil
		},
	}

	s, err := Open(context.Background(), Config{}, deps)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, permErr) {
		t.Fatalf("err = %v, want wrapped permission error", err)
	}
	if s != nil {
		t.Fatal("failed open must not return a session")
	}
	// No device handle was acquired, so none may remain open.
	if player.closed {
		t.Fatal("speaker was never acquired and must not be closed")
	}
}

func TestOpen_DialFailureReleasesDevices(t *testing.T) {
	src := newIdleSource()
	player := &fakePlayer{}
	dialErr := errors.New("connection refused")
	deps := Deps{
		Mic:     func(context.Context) (Source, error) { return src, nil },
		Speaker: func(context.Context) (Player, error) { return player, nil },
		DialFunc: func(context.Context, TransportConfig) (Transport, error) {
			return nil, dialErr
		},
	}

	if _, err := Open(context.Background(), Config{}, deps); !errors.Is(err, dialErr) {
		t.Fatalf("err = %v, want wrapped dial error", err)
	}
	if !src.isClosed() {
		t.Fatal("mic handle leaked after dial failure")
	}
	if !player.closed {
		t.Fatal("speaker handle leaked after dial failure")
	}
}

func TestSession_AudioEnqueuedInOrder(t *testing.T) {
	tr := newFakeTransport()
	player := &fakePlayer{}
	s, err := Open(context.Background(), Config{}, testDeps(newIdleSource(), player, tr))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	tr.events <- AudioEvent{Data: audio.EncodePCM16(make([]float32, 2400))} // 100ms
	tr.events <- AudioEvent{Data: audio.EncodePCM16(make([]float32, 1200))} // 50ms

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		player.mu.Lock()
		n := len(player.plays)
		player.mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	player.mu.Lock()
	defer player.mu.Unlock()
	if len(player.plays) != 2 {
		t.Fatalf("scheduled %d segments, want 2", len(player.plays))
	}
	if player.plays[0].start != 0 || player.plays[1].start != 100*time.Millisecond {
		t.Fatalf("starts = %v, %v; want 0, 100ms", player.plays[0].start, player.plays[1].start)
	}
}

func TestSession_InterruptionStopsPlayback(t *testing.T) {
	tr := newFakeTransport()
	player := &fakePlayer{}
	s, err := Open(context.Background(), Config{}, testDeps(newIdleSource(), player, tr))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	tr.events <- AudioEvent{Data: audio.EncodePCM16(make([]float32, 2400))}
	tr.events <- InterruptedEvent{}
	waitForState(t, s, StateInterrupted)

	player.mu.Lock()
	stopped := len(player.handles) == 1 && player.handles[0].stopped
	player.mu.Unlock()
	if !stopped {
		t.Fatal("interruption did not stop in-flight playback")
	}

	// Next audio frame returns the session to ACTIVE.
	tr.events <- AudioEvent{Data: audio.EncodePCM16(make([]float32, 240))}
	waitForState(t, s, StateActive)
}

func TestSession_RemoteCloseTearsDown(t *testing.T) {
	tr := newFakeTransport()
	src := newIdleSource()
	player := &fakePlayer{}
	s, err := Open(context.Background(), Config{}, testDeps(src, player, tr))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	tr.events <- ClosedEvent{Reason: "remote close"}
	waitForState(t, s, StateClosed)

	s.Wait()
	if !src.isClosed() || !player.closed || !tr.isClosed() {
		t.Fatal("remote close must release every resource")
	}
}

func TestSession_ChannelErrorFails(t *testing.T) {
	tr := newFakeTransport()
	s, err := Open(context.Background(), Config{}, testDeps(newIdleSource(), &fakePlayer{}, tr))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	chanErr := errors.New("connection reset")
	tr.events <- ErrorEvent{Err: chanErr}
	waitForState(t, s, StateFailed)

	if !errors.Is(s.Err(), chanErr) {
		t.Fatalf("session err = %v, want channel error", s.Err())
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	tr := newFakeTransport()
	src := newIdleSource()
	player := &fakePlayer{}
	s, err := Open(context.Background(), Config{}, testDeps(src, player, tr))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if s.State() != StateClosed {
		t.Fatalf("state = %v, want CLOSED", s.State())
	}
	if !src.isClosed() || !player.closed || !tr.isClosed() {
		t.Fatal("close must release every resource")
	}
}

func TestSession_StateCallbacks(t *testing.T) {
	tr := newFakeTransport()
	var mu sync.Mutex
	var seen []State
	cfg := Config{OnState: func(st State) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	}}

	s, err := Open(context.Background(), cfg, testDeps(newIdleSource(), &fakePlayer{}, tr))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Close()
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateConnecting, StateActive, StateClosed}
	if len(seen) != len(want) {
		t.Fatalf("states = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("states = %v, want %v", seen, want)
		}
	}
}
