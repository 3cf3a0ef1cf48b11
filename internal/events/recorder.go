package events

import (
	"context"
	"sync"
)

// Recorded is one event captured by a Recorder.
type Recorded struct {
	Topic string
	Key   string
	Event any
}

// Recorder keeps published events in memory. The reconcile CLI uses it to
// print alerts raised during a one-off sweep, and tests use it to assert on
// what was emitted.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, topic, key string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Topic: topic, Key: key, Event: event})
	return nil
}

// Close implements Publisher.
func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// ByTopic returns the events published to topic.
func (r *Recorder) ByTopic(topic string) []Recorded {
	var out []Recorded
	for _, e := range r.Events() {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}
