// Package live implements the realtime voice session: a capture pipeline
// feeding a duplex connection to the speech model, and a playback scheduler
// driving continuous low-latency audio output.
//
// One Session owns exactly one microphone source, one speaker player and
// one network transport for its lifetime. Inbound transport events are
// consumed by a single goroutine, so handlers never run concurrently with
// each other.
package live
