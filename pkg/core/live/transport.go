package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kornella/anywaa/pkg/core/audio"
)

const (
	defaultLiveEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	defaultDialTimeout = 15 * time.Second
)

// ErrSessionClosed is returned by transport sends after Close.
var ErrSessionClosed = errors.New("live: session is closed")

// TransportConfig configures one duplex connection to the voice service.
type TransportConfig struct {
	// APIKey authenticates the connection.
	APIKey string

	// Model is the speech model identifier, for example
	// "gemini-2.5-flash-native-audio-preview-12-2025".
	Model string

	// Voice is the prebuilt voice name, for example "Puck".
	Voice string

	// SystemInstruction primes the model for voice mode.
	SystemInstruction string

	// Endpoint overrides the service URL. Used by tests.
	Endpoint string

	// DialTimeout bounds the websocket handshake plus setup exchange.
	// Default: 15s.
	DialTimeout time.Duration
}

// Transport is one open duplex channel. Send transmits an encoded capture
// chunk; Events yields inbound messages in arrival order and is closed when
// the channel ends. Close is idempotent.
type Transport interface {
	Send(chunk audio.Chunk) error
	Events() <-chan ServerEvent
	Close() error
}

// Wire messages for the BidiGenerateContent protocol.

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model             string           `json:"model"`
	GenerationConfig  generationConfig `json:"generationConfig"`
	SystemInstruction *wireContent     `json:"systemInstruction,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type wireContent struct {
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *wireInlineData `json:"inlineData,omitempty"`
}

type wireInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []wireInlineData `json:"mediaChunks"`
}

type serverMessage struct {
	SetupComplete *struct{}          `json:"setupComplete,omitempty"`
	ServerContent *wireServerContent `json:"serverContent,omitempty"`
}

type wireServerContent struct {
	ModelTurn    *wireContent `json:"modelTurn,omitempty"`
	TurnComplete bool         `json:"turnComplete,omitempty"`
	Interrupted  bool         `json:"interrupted,omitempty"`
}

type wsTransport struct {
	conn *websocket.Conn

	events chan ServerEvent
	stop   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

// Dial opens a duplex channel to the voice service, performs the setup
// exchange and starts the read loop.
func Dial(ctx context.Context, cfg TransportConfig) (Transport, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultLiveEndpoint
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := endpoint
	if cfg.APIKey != "" {
		url += "?key=" + cfg.APIKey
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial live service: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial live service: %w", err)
	}

	setup := setupMessage{
		Setup: setupPayload{
			Model: "models/" + strings.TrimPrefix(cfg.Model, "models/"),
			GenerationConfig: generationConfig{
				ResponseModalities: []string{"AUDIO"},
			},
		},
	}
	if cfg.Voice != "" {
		setup.Setup.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}
	if cfg.SystemInstruction != "" {
		setup.Setup.SystemInstruction = &wireContent{
			Parts: []wirePart{{Text: cfg.SystemInstruction}},
		}
	}

	deadline := time.Now().Add(timeout)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(setup); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send live setup: %w", err)
	}

	_ = conn.SetReadDeadline(deadline)
	_, data, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("await live setup ack: %w", err)
	}
	var ack serverMessage
	if err := json.Unmarshal(data, &ack); err != nil || ack.SetupComplete == nil {
		_ = conn.Close()
		return nil, fmt.Errorf("live setup rejected: %q", data)
	}

	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	t := &wsTransport{
		conn:   conn,
		events: make(chan ServerEvent, 32),
		stop:   make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *wsTransport) Send(chunk audio.Chunk) error {
	if t.closed.Load() {
		return ErrSessionClosed
	}
	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []wireInlineData{{
				MIMEType: chunk.MIMEType,
				Data:     audio.EncodeBase64(chunk.Data),
			}},
		},
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.closed.Load() {
		return ErrSessionClosed
	}
	return t.conn.WriteJSON(msg)
}

func (t *wsTransport) Events() <-chan ServerEvent {
	return t.events
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.stop)
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		t.writeMu.Unlock()
		_ = t.conn.Close()
	})
	return nil
}

func (t *wsTransport) readLoop() {
	defer close(t.events)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if t.closed.Load() ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.emit(ClosedEvent{Reason: "remote close"})
			} else {
				t.emit(ErrorEvent{Err: err})
			}
			return
		}

		events, err := decodeServerFrame(data)
		if err != nil {
			t.emit(ErrorEvent{Err: err})
			return
		}
		for _, ev := range events {
			if !t.emit(ev) {
				return
			}
		}
	}
}

// emit delivers in order, blocking on the consumer but yielding to Close.
func (t *wsTransport) emit(ev ServerEvent) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.stop:
		return false
	}
}

// decodeServerFrame maps one inbound frame to zero or more events. Audio
// payloads are base64-decoded here so the rest of the pipeline only sees
// raw PCM; a declared rate other than the playback rate is rejected rather
// than played back with pitch distortion.
func decodeServerFrame(data []byte) ([]ServerEvent, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode live frame: %w", err)
	}

	sc := msg.ServerContent
	if sc == nil {
		return nil, nil
	}

	var events []ServerEvent
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			if rate := rateFromMIME(part.InlineData.MIMEType); rate != audio.PlaybackRate {
				return nil, fmt.Errorf("live: inbound audio rate %d, want %d", rate, audio.PlaybackRate)
			}
			pcm, err := audio.DecodeBase64(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("decode inbound audio: %w", err)
			}
			events = append(events, AudioEvent{Data: pcm})
		}
	}
	if sc.Interrupted {
		events = append(events, InterruptedEvent{})
	}
	if sc.TurnComplete {
		events = append(events, TurnCompleteEvent{})
	}
	return events, nil
}

// rateFromMIME extracts the rate parameter from a descriptor such as
// "audio/pcm;rate=24000". Inbound audio arrives implicitly at the playback
// rate, so a missing parameter defaults to it.
func rateFromMIME(mime string) int {
	for _, param := range strings.Split(mime, ";") {
		param = strings.TrimSpace(param)
		if v, ok := strings.CutPrefix(param, "rate="); ok {
			if rate, err := strconv.Atoi(v); err == nil {
				return rate
			}
			return 0
		}
	}
	return audio.PlaybackRate
}
