// Package devtool provides observers for dispatched store actions.
//
//	rec := devtool.NewRecorder()
//	c := servicex.New(servicex.WithSink(devtool.Multi(rec, devtool.NewSlogSink(logger))))
//	...
//	out, _ := rec.Snapshot()
package devtool

import (
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/centraunit/servicex/store"
)

// Record is one entry of the action history.
type Record struct {
	Type   string `yaml:"type"`
	Params any    `yaml:"params,omitempty"`
}

// Recorder keeps the action history and the latest state of every
// namespace in memory.
type Recorder struct {
	mu      sync.Mutex
	records []Record
	states  map[string]any
	limit   int
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithHistoryLimit keeps only the newest n records. Zero means unbounded.
func WithHistoryLimit(n int) RecorderOption {
	return func(r *Recorder) {
		r.limit = n
	}
}

func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{states: make(map[string]any)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LogAction implements store.Sink.
func (r *Recorder) LogAction(namespace string, entry store.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, Record{
		Type:   fmt.Sprintf("%s/%s", namespace, entry.Action),
		Params: entry.Params,
	})
	if r.limit > 0 && len(r.records) > r.limit {
		r.records = append([]Record(nil), r.records[len(r.records)-r.limit:]...)
	}
	if entry.HasState {
		r.states[namespace] = entry.State
	}
}

// Records returns a copy of the history, oldest first.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Types returns the type of every record, oldest first.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.records))
	for i, rec := range r.records {
		types[i] = rec.Type
	}
	return types
}

// State returns the last state recorded for namespace.
func (r *Recorder) State(namespace string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[namespace]
	return st, ok
}

// Snapshot renders the latest state of every namespace as YAML.
func (r *Recorder) Snapshot() ([]byte, error) {
	r.mu.Lock()
	states := make(map[string]any, len(r.states))
	for ns, st := range r.states {
		states[ns] = st
	}
	r.mu.Unlock()

	data, err := yaml.Marshal(states)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	return data, nil
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
	r.states = make(map[string]any)
}

// SlogSink writes every action to a slog.Logger at debug level.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// LogAction implements store.Sink.
func (s *SlogSink) LogAction(namespace string, entry store.LogEntry) {
	attrs := []any{"store", namespace, "action", entry.Action, "params", entry.Params}
	if entry.HasState {
		attrs = append(attrs, "state", entry.State)
	}
	s.logger.Debug("action", attrs...)
}

// Multi fans each action out to every sink in order. A sink that panics
// is logged and skipped; the others still see the action.
func Multi(sinks ...store.Sink) store.Sink {
	return store.SinkFunc(func(namespace string, entry store.LogEntry) {
		for _, sink := range sinks {
			if sink != nil {
				logAction(sink, namespace, entry)
			}
		}
	})
}

func logAction(sink store.Sink, namespace string, entry store.LogEntry) {
	defer func() {
		if r := recover(); r != nil {
			slog.Default().Error("action sink panicked", "store", namespace, "action", entry.Action, "panic", fmt.Sprint(r))
		}
	}()
	sink.LogAction(namespace, entry)
}
