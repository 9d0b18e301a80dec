// Package events carries change notifications for content entries.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/contentstore/internal/model"
)

// Topic prefix and constants. Subscribers can match all of them with
// TopicAll.
const (
	TopicPrefix = "content.entry."
	TopicAll    = TopicPrefix + ">"

	TopicEntryCreated = TopicPrefix + "created"
	TopicEntryUpdated = TopicPrefix + "updated"
	TopicEntryDeleted = TopicPrefix + "deleted"
)

// EntryCreated is published after a new key is stored.
type EntryCreated struct {
	Entry *model.Entry `json:"entry"`
	At    time.Time    `json:"at"`
}

// EntryUpdated is published after an existing key is replaced.
type EntryUpdated struct {
	Entry            *model.Entry `json:"entry"`
	PreviousRevision int64        `json:"previous_revision"`
	At               time.Time    `json:"at"`
}

// EntryDeleted is published after an entry is removed.
type EntryDeleted struct {
	ID  string    `json:"id"`
	Key string    `json:"key"`
	At  time.Time `json:"at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber receives events published on a topic pattern. The cancel
// function unsubscribes and closes the channel.
type Subscriber interface {
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}

// Message is one raw event delivered to a subscriber.
type Message struct {
	Topic string
	Data  []byte
}

// Decode parses a message into the event type registered for its topic.
func (m Message) Decode() (any, error) {
	var v any
	switch m.Topic {
	case TopicEntryCreated:
		v = &EntryCreated{}
	case TopicEntryUpdated:
		v = &EntryUpdated{}
	case TopicEntryDeleted:
		v = &EntryDeleted{}
	default:
		return nil, fmt.Errorf("unknown event topic %q", m.Topic)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", m.Topic, err)
	}
	return v, nil
}
