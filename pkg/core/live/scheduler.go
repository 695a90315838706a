package live

import (
	"sync"
	"time"

	"github.com/kornella/anywaa/pkg/core/audio"
)

// Player is the output device the scheduler plays through. PlayAt schedules
// a segment to begin at the given time on the player's output clock; the
// returned handle reports completion and supports a hard stop.
//
// Now is the current time on that same clock. Close releases the output
// device; the scheduler never calls it.
type Player interface {
	PlayAt(seg audio.Segment, start time.Duration) (PlaybackHandle, error)
	Now() time.Duration
	Close() error
}

// PlaybackHandle tracks one scheduled segment until playback completes.
type PlaybackHandle interface {
	// Stop halts the segment immediately. Safe to call after completion.
	Stop()
	// Done is closed when the segment finishes playing or is stopped.
	Done() <-chan struct{}
}

// Scheduler owns the playback timeline: segments are enqueued in arrival
// order and scheduled back to back, never overlapping and never reordered.
// The schedule clock and pending set are owned exclusively by the scheduler.
type Scheduler struct {
	player Player

	mu        sync.Mutex
	nextStart time.Duration
	pending   map[PlaybackHandle]struct{}
}

// NewScheduler creates a scheduler over the given output player.
func NewScheduler(player Player) *Scheduler {
	return &Scheduler{
		player:  player,
		pending: make(map[PlaybackHandle]struct{}),
	}
}

// Enqueue schedules a decoded segment for gapless playback after everything
// already queued, or immediately if the queue has drained. It returns the
// scheduled start time on the output clock.
func (s *Scheduler) Enqueue(seg audio.Segment) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.nextStart
	if now := s.player.Now(); now > start {
		start = now
	}

	handle, err := s.player.PlayAt(seg, start)
	if err != nil {
		return 0, err
	}

	s.nextStart = start + seg.Duration()
	s.pending[handle] = struct{}{}
	go s.reap(handle)
	return start, nil
}

// reap releases the segment once its playback end fires.
func (s *Scheduler) reap(handle PlaybackHandle) {
	<-handle.Done()
	s.mu.Lock()
	delete(s.pending, handle)
	s.mu.Unlock()
}

// StopAll halts every pending and playing segment, clears the pending set
// and resets the schedule clock so the next enqueue starts at "now" rather
// than a stale future time. Safe to call at any time, including when
// nothing is playing.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	handles := make([]PlaybackHandle, 0, len(s.pending))
	for h := range s.pending {
		handles = append(handles, h)
	}
	s.pending = make(map[PlaybackHandle]struct{})
	s.nextStart = 0
	s.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}

// Pending returns the number of segments scheduled but not yet finished.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
