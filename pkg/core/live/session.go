package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kornella/anywaa/pkg/core/audio"
)

const (
	// DefaultModel is the native-audio speech model a session connects to.
	DefaultModel = "gemini-2.5-flash-native-audio-preview-12-2025"

	// DefaultVoice is the prebuilt voice used for model speech.
	DefaultVoice = "Puck"

	// DefaultSystemInstruction primes the model for spoken replies.
	DefaultSystemInstruction = "You are Anywaa AI in voice mode. Be concise and culturally attuned."
)

// Config configures one voice session.
type Config struct {
	// APIKey authenticates the duplex connection.
	APIKey string

	// Model, Voice and SystemInstruction default to the package defaults
	// when empty.
	Model             string
	Voice             string
	SystemInstruction string

	// OnState, when set, is invoked after every state transition. Calls
	// arrive from the session's event goroutine, one at a time.
	OnState func(State)

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Deps supplies the session's device and network collaborators. A session
// acquires both audio handles itself so that every failure path can release
// exactly what was acquired.
type Deps struct {
	// Mic acquires the exclusive capture stream. An error here aborts
	// establishment (for example, microphone permission denied).
	Mic func(context.Context) (Source, error)

	// Speaker acquires the playback device.
	Speaker func(context.Context) (Player, error)

	// DialFunc opens the duplex channel. Nil means Dial.
	DialFunc func(context.Context, TransportConfig) (Transport, error)
}

// Session is one realtime voice interaction. At most one capture stream and
// one duplex channel exist for its lifetime; a replacement session requires
// this one to be fully closed first.
type Session struct {
	cfg Config
	log *slog.Logger

	transport Transport
	mic       Source
	player    Player
	sched     *Scheduler

	captureCancel context.CancelFunc
	wg            sync.WaitGroup

	mu      sync.Mutex
	state   State
	failure error

	closeOnce sync.Once
}

// Open establishes a voice session: microphone, then speaker, then the
// duplex channel. On success the session is Active and both the capture
// loop and the inbound event loop are running. On any failure all
// partially-acquired resources are released and the returned session is nil.
func Open(ctx context.Context, cfg Config, deps Deps) (*Session, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.SystemInstruction == "" {
		cfg.SystemInstruction = DefaultSystemInstruction
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	dial := deps.DialFunc
	if dial == nil {
		dial = Dial
	}

	s := &Session{
		cfg:   cfg,
		log:   cfg.Logger.With("component", "live"),
		state: StateIdle,
	}
	s.setState(StateConnecting)

	mic, err := deps.Mic(ctx)
	if err != nil {
		s.fail(fmt.Errorf("acquire microphone: %w", err))
		return nil, s.failure
	}
	s.mic = mic

	player, err := deps.Speaker(ctx)
	if err != nil {
		_ = mic.Close()
		s.fail(fmt.Errorf("acquire speaker: %w", err))
		return nil, s.failure
	}
	s.player = player
	s.sched = NewScheduler(player)

	transport, err := dial(ctx, TransportConfig{
		APIKey:            cfg.APIKey,
		Model:             cfg.Model,
		Voice:             cfg.Voice,
		SystemInstruction: cfg.SystemInstruction,
	})
	if err != nil {
		_ = mic.Close()
		_ = player.Close()
		s.fail(fmt.Errorf("open live channel: %w", err))
		return nil, s.failure
	}
	s.transport = transport

	captureCtx, cancel := context.WithCancel(context.Background())
	s.captureCancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		loop := newCapture(s.mic, s.transport.Send)
		if err := loop.run(captureCtx); err != nil {
			s.log.Error("capture loop stopped", "error", err)
		}
	}()
	go func() {
		defer s.wg.Done()
		s.eventLoop()
	}()

	s.setState(StateActive)
	s.log.Info("voice session established", "model", cfg.Model, "voice", cfg.Voice)
	return s, nil
}

// eventLoop is the single consumer of inbound events. Each event runs to
// completion before the next is handled, which keeps ordering guarantees
// explicit: audio frames are enqueued strictly in arrival order.
func (s *Session) eventLoop() {
	for ev := range s.transport.Events() {
		switch e := ev.(type) {
		case AudioEvent:
			seg, err := audio.DecodeChunk(e.Data, audio.PlaybackRate)
			if err != nil {
				s.log.Warn("dropping malformed audio frame", "error", err)
				continue
			}
			if _, err := s.sched.Enqueue(seg); err != nil {
				s.log.Warn("enqueue playback segment", "error", err)
				continue
			}
			s.setState(StateActive)
		case TurnCompleteEvent:
			s.log.Debug("turn complete")
		case InterruptedEvent:
			s.sched.StopAll()
			s.setState(StateInterrupted)
		case ClosedEvent:
			s.log.Info("live channel closed by remote", "reason", e.Reason)
			s.teardown(StateClosed, nil)
			return
		case ErrorEvent:
			s.log.Error("live channel error", "error", e.Err)
			s.teardown(StateFailed, e.Err)
			return
		}
	}
}

// Close shuts the session down: channel, capture stream, scheduled
// playback, both device handles. Idempotent; safe from any state.
func (s *Session) Close() error {
	s.teardown(StateClosed, nil)
	return nil
}

// teardown releases every resource exactly once. All failure paths and the
// explicit Close run through here.
func (s *Session) teardown(final State, reason error) {
	s.closeOnce.Do(func() {
		s.captureCancel()
		_ = s.transport.Close()
		s.sched.StopAll()
		_ = s.mic.Close()
		_ = s.player.Close()
		s.setStateWithReason(final, reason)
	})
}

// fail records a pre-establishment failure. Resources acquired before the
// failure are released by the caller.
func (s *Session) fail(err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
	s.setState(StateFailed)
	s.log.Error("voice session failed", "error", err)
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure reason for a session in StateFailed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Wait blocks until the capture and event loops have exited.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) setState(next State) {
	s.setStateWithReason(next, nil)
}

func (s *Session) setStateWithReason(next State, reason error) {
	s.mu.Lock()
	if s.state == next || !validTransition(s.state, next) {
		s.mu.Unlock()
		return
	}
	s.state = next
	if reason != nil && s.failure == nil {
		s.failure = reason
	}
	notify := s.cfg.OnState
	s.mu.Unlock()

	if notify != nil {
		notify(next)
	}
}
