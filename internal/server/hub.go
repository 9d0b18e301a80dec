package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alfredjeanlab/contentstore/internal/events"
)

// DefaultReplayWindow is how many recent events a hub keeps for
// Last-Event-ID resumption.
const DefaultReplayWindow = 1000

// subscriptionBuffer is the per-subscriber channel size. A subscriber that
// falls further behind misses events rather than blocking writers.
const subscriptionBuffer = 64

// ErrHubClosed is returned by Subscribe after Close.
var ErrHubClosed = errors.New("event hub closed")

// streamEvent is one published event with its hub sequence number.
type streamEvent struct {
	Seq uint64
	Key string
	events.Message
}

// streamFilter selects events by topic and by entry key. Both lists hold
// dot-separated subject patterns ("*" one segment, ">" the rest); an empty
// list matches everything.
type streamFilter struct {
	topics []string
	keys   []string
}

func (f streamFilter) match(evt streamEvent) bool {
	return matchAny(f.topics, evt.Topic) && matchAny(f.keys, evt.Key)
}

func matchAny(patterns []string, subject string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if matchTopicPattern(p, subject) {
			return true
		}
	}
	return false
}

type subscription struct {
	filter streamFilter
	ch     chan streamEvent
}

// EventHub is an in-process event bus. It implements events.Publisher, so
// the coordinator can publish to it, and events.Subscriber, so in-process
// consumers can read from it. The SSE endpoint streams from it.
type EventHub struct {
	mu     sync.Mutex
	subs   map[*subscription]struct{}
	seq    uint64
	ring   []streamEvent
	head   int // next write position in ring
	size   int // valid events in ring
	closed bool
}

// HubOption configures an EventHub.
type HubOption func(*EventHub)

// WithReplayWindow keeps the last n events for resumption. n <= 0 disables
// replay.
func WithReplayWindow(n int) HubOption {
	return func(h *EventHub) {
		if n < 0 {
			n = 0
		}
		h.ring = make([]streamEvent, n)
	}
}

// NewEventHub returns an open hub with DefaultReplayWindow unless overridden.
func NewEventHub(opts ...HubOption) *EventHub {
	h := &EventHub{
		subs: make(map[*subscription]struct{}),
		ring: make([]streamEvent, DefaultReplayWindow),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// entryKey extracts the entry key carried by a coordinator event.
func entryKey(event any) string {
	switch e := event.(type) {
	case events.EntryCreated:
		return e.Entry.Key
	case *events.EntryCreated:
		return e.Entry.Key
	case events.EntryUpdated:
		return e.Entry.Key
	case *events.EntryUpdated:
		return e.Entry.Key
	case events.EntryDeleted:
		return e.Key
	case *events.EntryDeleted:
		return e.Key
	}
	return ""
}

// Publish encodes event as JSON and delivers it under topic. After Close it
// does nothing.
func (h *EventHub) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event for hub: %w", topic, err)
	}
	h.broadcast(topic, entryKey(event), data)
	return nil
}

func (h *EventHub) broadcast(topic, key string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	h.seq++
	evt := streamEvent{Seq: h.seq, Key: key, Message: events.Message{Topic: topic, Data: data}}
	if n := len(h.ring); n > 0 {
		h.ring[h.head] = evt
		h.head = (h.head + 1) % n
		if h.size < n {
			h.size++
		}
	}

	for s := range h.subs {
		if !s.filter.match(evt) {
			continue
		}
		select {
		case s.ch <- evt:
		default:
		}
	}
}

// Close ends every subscription. It is safe to call more than once.
func (h *EventHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
	return nil
}

func (h *EventHub) subscribe(f streamFilter) (*subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	s := &subscription{filter: f, ch: make(chan streamEvent, subscriptionBuffer)}
	h.subs[s] = struct{}{}
	return s, nil
}

func (h *EventHub) unsubscribe(s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

// Subscribe implements events.Subscriber. topic is a subject pattern such
// as events.TopicAll.
func (h *EventHub) Subscribe(topic string) (<-chan events.Message, func(), error) {
	var f streamFilter
	if topic != "" {
		f.topics = []string{topic}
	}
	s, err := h.subscribe(f)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan events.Message, subscriptionBuffer)
	go func() {
		defer close(out)
		for evt := range s.ch {
			out <- evt.Message
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.unsubscribe(s)
			// Drain so the forwarder can exit if nobody reads out any more.
			go func() {
				for range out {
				}
			}()
		})
	}
	return out, cancel, nil
}

// since returns retained events newer than lastSeq, oldest first. complete
// is false when events after lastSeq have already left the replay window, or
// when lastSeq is from a different hub (ahead of this one).
func (h *EventHub) since(lastSeq uint64) (evts []streamEvent, complete bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	oldest := h.seq + 1 - uint64(h.size)
	if lastSeq > h.seq || lastSeq+1 < oldest {
		complete = false
	} else {
		complete = true
	}

	n := len(h.ring)
	for i := range h.size {
		evt := h.ring[(h.head-h.size+i+n)%n]
		if evt.Seq > lastSeq {
			evts = append(evts, evt)
		}
	}
	return evts, complete
}

// splitList parses a comma-separated query value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// matchTopicPattern matches a dot-separated subject against a pattern with
// NATS wildcards: "*" is exactly one segment, ">" is one or more trailing
// segments.
func matchTopicPattern(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	pat := strings.Split(pattern, ".")
	sub := strings.Split(subject, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(sub)
		}
		if i >= len(sub) || (p != "*" && p != sub[i]) {
			return false
		}
	}
	return len(pat) == len(sub)
}
