package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ragdesk/console/internal/adapters/navigation"
	"github.com/ragdesk/console/internal/binding"
	"github.com/ragdesk/console/internal/session"
	"github.com/ragdesk/console/internal/tenant"
)

const (
	eventBuffer       = 32
	keepAliveInterval = 15 * time.Second
)

type sseEvent struct {
	name string
	data any
}

// handleEvents streams session, tenant and navigate events to a connected UI
// as Server-Sent Events. The current session and tenant snapshots are sent
// first. Store notifications never block: when a slow client falls behind
// the stream is closed and the client is expected to reconnect.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	events := make(chan sseEvent, eventBuffer)
	overflow := make(chan struct{})
	var once sync.Once
	send := func(ev sseEvent) {
		select {
		case events <- ev:
		default:
			once.Do(func() { close(overflow) })
		}
	}

	unsubSession := binding.WatchSession(ctx, func(st session.State) {
		send(sseEvent{name: "session", data: newSessionView(st)})
	})
	defer unsubSession()

	if _, err := binding.LookupTenant(ctx); err == nil {
		unsubTenant := binding.WatchTenant(ctx, func(st tenant.State) {
			send(sseEvent{name: "tenant", data: newTenantView(st)})
		})
		defer unsubTenant()
	}

	if s.navigation != nil {
		unsubNav := s.navigation.Subscribe(func(ev navigation.Event) {
			send(sseEvent{name: "navigate", data: ev})
		})
		defer unsubNav()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, sseEvent{name: "session", data: newSessionView(binding.UseSession(ctx))}); err != nil {
		return
	}
	if resolver, err := binding.LookupTenant(ctx); err == nil {
		if err := writeEvent(w, sseEvent{name: "tenant", data: newTenantView(resolver.State())}); err != nil {
			return
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		case <-overflow:
			s.logger.Warn("event stream client fell behind, closing",
				slog.String("request_id", GetRequestID(ctx)))
			return
		case ev := <-events:
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev sseEvent) error {
	data, err := json.Marshal(ev.data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, data)
	return err
}
