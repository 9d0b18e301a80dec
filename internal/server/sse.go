package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	sseKeepaliveInterval = 15 * time.Second
	sseRetry             = 3 * time.Second

	// sseResetEvent tells a resuming client that events were missed and it
	// should refetch what it displays.
	sseResetEvent = "stream.reset"
)

// handleEventStream handles GET /v1/events/stream.
//
// Query: topics and keys are comma-separated subject patterns, for example
// topics=content.entry.deleted or keys=landing.>. A Last-Event-ID header
// replays retained events newer than that id.
func (s *ContentServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	q := r.URL.Query()
	filter := streamFilter{topics: splitList(q.Get("topics")), keys: splitList(q.Get("keys"))}

	var lastSeq uint64
	resume := false
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid Last-Event-ID")
			return
		}
		lastSeq, resume = n, true
	}

	// Subscribe before reading the replay window so nothing falls between
	// the two; duplicates are skipped by sequence number below.
	sub, err := s.hub.subscribe(filter)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer s.hub.unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "retry:%d\n\n", sseRetry.Milliseconds())

	sent := lastSeq
	if resume {
		replay, complete := s.hub.since(lastSeq)
		if !complete {
			fmt.Fprintf(w, "event:%s\ndata:{\"last_event_id\":%d}\n\n", sseResetEvent, lastSeq)
			sent = 0
		}
		for _, evt := range replay {
			if filter.match(evt) {
				writeSSEEvent(w, evt)
			}
			sent = evt.Seq
		}
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-sub.ch:
			if !ok {
				return
			}
			if evt.Seq <= sent {
				continue
			}
			sent = evt.Seq
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w io.Writer, evt streamEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.Seq, evt.Topic, evt.Data)
}
