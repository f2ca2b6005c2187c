// Package navigation provides the redirect side effect the session store
// triggers after login and logout.
package navigation

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ragdesk/console/internal/core/ports"
	"github.com/ragdesk/console/internal/reactive"
)

// Event is a redirect instruction for connected UIs.
type Event struct {
	Seq  uint64    `json:"seq"`
	Path string    `json:"path"`
	At   time.Time `json:"at"`
}

// Broadcaster publishes every navigation to its subscribers. The server
// forwards them to browsers as SSE "navigate" events.
type Broadcaster struct {
	events *reactive.Observable[Event]
	seq    atomic.Uint64
	logger *slog.Logger
}

var _ ports.Navigator = (*Broadcaster)(nil)

// NewBroadcaster creates a Broadcaster. A nil logger uses slog.Default().
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		events: reactive.New(Event{}),
		logger: logger,
	}
}

// Navigate publishes a redirect to path.
func (b *Broadcaster) Navigate(path string) {
	ev := Event{Seq: b.seq.Add(1), Path: path, At: time.Now().UTC()}
	b.logger.Debug("navigate",
		slog.String("path", path),
		slog.Int("listeners", b.events.Subscribers()))
	b.events.Set(ev)
}

// Last returns the most recent navigation, zero if none happened.
func (b *Broadcaster) Last() Event {
	return b.events.Get()
}

// Subscribe registers fn for every navigation.
func (b *Broadcaster) Subscribe(fn func(Event)) func() {
	return b.events.Subscribe(fn)
}

// Logger only logs navigations. It is used when no UI is attached.
type Logger struct {
	logger *slog.Logger
}

var _ ports.Navigator = (*Logger)(nil)

// NewLogger creates a log-only navigator.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

// Navigate logs the redirect.
func (l *Logger) Navigate(path string) {
	l.logger.Info("navigate", slog.String("path", path))
}
