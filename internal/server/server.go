// Package server exposes the content store over HTTP and gRPC.
package server

import (
	"github.com/alfredjeanlab/contentstore/internal/content"
)

// ContentServer serves entries and collections from one coordinator. Both the
// HTTP handler and the gRPC service share it.
type ContentServer struct {
	coord *content.Coordinator
	hub   *EventHub
}

// NewContentServer returns a ContentServer over coord. hub feeds the
// /v1/events/stream endpoint and should also be registered as one of the
// coordinator's publishers; a nil hub gets a fresh one that never sees events.
func NewContentServer(coord *content.Coordinator, hub *EventHub) *ContentServer {
	if hub == nil {
		hub = NewEventHub()
	}
	return &ContentServer{coord: coord, hub: hub}
}

// Hub returns the hub backing the event stream.
func (s *ContentServer) Hub() *EventHub { return s.hub }
