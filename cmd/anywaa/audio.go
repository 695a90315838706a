package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"

	"github.com/kornella/anywaa/pkg/core/audio"
	"github.com/kornella/anywaa/pkg/core/live"
)

// openMic initializes the system microphone at the capture rate and returns
// it as a live.Source. The malgo context is owned by the returned mic and
// released on Close.
func openMic(_ context.Context) (live.Source, error) {
	malgoConfig := malgo.ContextConfig{}
	malgoConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	malgoCtx, err := malgo.InitContext(nil, malgoConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	m := &mic{
		ctx: malgoCtx,
		buf: audio.NewBuffer(audio.CaptureFormat(), time.Second),
	}
	m.cond = sync.NewCond(&m.mu)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = audio.CaptureRate
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			m.buf.Write(pInputSamples)
			m.cond.Signal()
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		malgoCtx.Uninit()
		return nil, fmt.Errorf("init microphone: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		malgoCtx.Uninit()
		return nil, fmt.Errorf("start microphone: %w", err)
	}

	return m, nil
}

// mic buffers raw S16LE bytes from the malgo capture callback and hands them
// out as float32 blocks. The bounded buffer discards the oldest audio when
// the consumer falls behind, so a stalled session never grows memory.
type mic struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	buf    *audio.Buffer

	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
}

func (m *mic) ReadBlock(p []float32) (int, error) {
	m.mu.Lock()
	for m.buf.Len() < 2 && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		m.mu.Unlock()
		return 0, io.EOF
	}
	m.mu.Unlock()

	want := len(p) * 2
	if avail := m.buf.Len() &^ 1; avail < want {
		want = avail
	}
	samples, err := audio.DecodePCM16(m.buf.TakeUpTo(want))
	if err != nil {
		return 0, err
	}
	return copy(p, samples), nil
}

func (m *mic) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()

	if m.device != nil {
		m.device.Stop()
		m.device.Uninit()
	}
	if m.ctx != nil {
		m.ctx.Uninit()
	}
	return nil
}

// meteredSource wraps a capture source and logs the input level of every
// block. Enabled only in developer mode.
type meteredSource struct {
	src live.Source
	log *slog.Logger
}

func (m *meteredSource) ReadBlock(p []float32) (int, error) {
	n, err := m.src.ReadBlock(p)
	if n > 0 {
		pcm := audio.EncodePCM16(p[:n])
		m.log.Debug("mic level",
			"rms", audio.RMSEnergy(pcm),
			"peak", audio.PeakAmplitude(pcm))
	}
	return n, err
}

func (m *meteredSource) Close() error { return m.src.Close() }

// openSpeaker initializes the system output at the playback rate and returns
// it as a live.Player. One oto context per process is assumed.
func openSpeaker(ctx context.Context) (live.Player, error) {
	otoOpts := &oto.NewContextOptions{
		SampleRate:   audio.PlaybackRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   4800, // ~100ms for low latency
	}
	otoCtx, ready, err := oto.NewContext(otoOpts)
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s := &speaker{
		otoCtx: otoCtx,
		epoch:  time.Now(),
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// speaker feeds scheduled segments to a single pull-based oto player in
// queue order. The scheduler guarantees segments arrive back to back, so a
// FIFO of byte slices realizes the timeline without per-segment timers.
type speaker struct {
	otoCtx *oto.Context
	epoch  time.Time

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*playback
	player  *oto.Player
	playing bool
	closed  bool
}

// playback is one scheduled segment making its way through the speaker.
type playback struct {
	owner *speaker
	data  []byte
	done  chan struct{}
	once  sync.Once
}

func (p *playback) Stop() {
	p.owner.drop(p)
}

func (p *playback) Done() <-chan struct{} { return p.done }

func (p *playback) finish() {
	p.once.Do(func() { close(p.done) })
}

func (s *speaker) PlayAt(seg audio.Segment, _ time.Duration) (live.PlaybackHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("speaker closed")
	}

	p := &playback{
		owner: s,
		data:  audio.EncodePCM16(seg.Samples),
		done:  make(chan struct{}),
	}
	s.queue = append(s.queue, p)

	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}
	s.cond.Signal()
	return p, nil
}

func (s *speaker) Now() time.Duration {
	return time.Since(s.epoch)
}

// Read implements io.Reader for oto.Player; oto pulls audio for playback.
func (s *speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) == 0 && !s.closed {
		s.cond.Wait()
	}

	if s.closed && len(s.queue) == 0 {
		// Silence lets oto drain without a short read.
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	head := s.queue[0]
	n := copy(p, head.data)
	head.data = head.data[n:]
	if len(head.data) == 0 {
		s.queue = s.queue[1:]
		head.finish()
	}
	return n, nil
}

// drop removes a pending segment from the queue and marks it finished.
func (s *speaker) drop(target *playback) {
	s.mu.Lock()
	for i, p := range s.queue {
		if p == target {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	target.finish()
}

func (s *speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	queue := s.queue
	s.queue = nil
	s.cond.Broadcast()
	player := s.player
	s.player = nil
	s.mu.Unlock()

	for _, p := range queue {
		p.finish()
	}
	if player != nil {
		player.Close()
	}
	return nil
}
