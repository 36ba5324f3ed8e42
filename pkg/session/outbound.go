package session

import (
	"time"

	"github.com/avast/retry-go"
)

// DefaultDrainTimeout is the default outbound drain timeout (spec.md §5,
// 5s). Nothing in this package reads it; Gateway.Shutdown takes its wait
// from config, and outbound writes are synchronous with no queue.
const DefaultDrainTimeout = 5 * time.Second

// Sender writes a single Envelope to the wire.
type Sender interface {
	WriteEnvelope(env Envelope) error
}

// ReliableSender wraps a Sender with bounded retry for transient write
// failures, the same retry-on-transient-failure idiom the teacher's
// control loop uses around cloud API calls.
type ReliableSender struct {
	inner   Sender
	attempts uint
	delay   time.Duration
}

// NewReliableSender builds a ReliableSender retrying up to attempts times
// with delay between tries.
func NewReliableSender(inner Sender, attempts uint, delay time.Duration) *ReliableSender {
	return &ReliableSender{inner: inner, attempts: attempts, delay: delay}
}

// Send writes env, retrying transient failures.
func (s *ReliableSender) Send(env Envelope) error {
	return retry.Do(
		func() error { return s.inner.WriteEnvelope(env) },
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.LastErrorOnly(true),
	)
}

// WriteEnvelope satisfies Sender so a ReliableSender can stand in anywhere
// a plain Sender is expected (e.g. NodeDispatcher), gaining retry-on-
// transient-failure transparently.
func (s *ReliableSender) WriteEnvelope(env Envelope) error {
	return s.Send(env)
}
