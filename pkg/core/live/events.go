package live

// ServerEvent is one inbound message from the voice service, decoded once
// at the network boundary. Events are delivered in arrival order on a
// single channel; consumers switch over the concrete type.
type ServerEvent interface {
	serverEventType() string
}

// AudioEvent carries one frame of raw little-endian 16-bit PCM produced by
// the model, implicitly at the playback sample rate.
type AudioEvent struct {
	Data []byte
}

func (AudioEvent) serverEventType() string { return "audio" }

// TurnCompleteEvent marks the end of the model's current turn. It is
// informational; playback already runs segment-by-segment as audio arrives.
type TurnCompleteEvent struct{}

func (TurnCompleteEvent) serverEventType() string { return "turn_complete" }

// InterruptedEvent signals that the remote party started a new turn while
// queued audio was still playing. All scheduled playback must stop promptly.
type InterruptedEvent struct{}

func (InterruptedEvent) serverEventType() string { return "interrupted" }

// ClosedEvent signals a remote-initiated close of the duplex channel.
type ClosedEvent struct {
	Reason string
}

func (ClosedEvent) serverEventType() string { return "closed" }

// ErrorEvent carries a terminal channel error. The session does not retry;
// the caller must open a new session to reconnect.
type ErrorEvent struct {
	Err error
}

func (ErrorEvent) serverEventType() string { return "error" }
