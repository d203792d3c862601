package store

import "log/slog"

// LogEntry is one dispatched action as seen by a Sink. State is set only
// when the action produced a new state.
type LogEntry struct {
	Action   string
	Params   any
	State    any
	HasState bool
}

// Sink is a write-only observer of dispatched actions.
type Sink interface {
	LogAction(namespace string, entry LogEntry)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(namespace string, entry LogEntry)

// LogAction implements Sink.
func (f SinkFunc) LogAction(namespace string, entry LogEntry) {
	if f != nil {
		f(namespace, entry)
	}
}

type noopSink struct{}

func (noopSink) LogAction(string, LogEntry) {}

// report forwards to sink and swallows anything it panics with.
func report(sink Sink, logger *slog.Logger, namespace string, entry LogEntry) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("action sink panicked", "store", namespace, "action", entry.Action, "panic", r)
		}
	}()
	sink.LogAction(namespace, entry)
}
