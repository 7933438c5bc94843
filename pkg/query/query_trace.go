package query

import (
	"sort"
	"sync"
	"time"
)

type TraceEventKind string

const (
	TraceEventRetrievedChunkIDs TraceEventKind = "retrieved_chunk_ids"
	TraceEventUsedChunkIDs      TraceEventKind = "used_chunk_ids"
	TraceEventExpandedConcepts  TraceEventKind = "expanded_concepts"
	TraceEventAnswerMode        TraceEventKind = "answer_mode"
)

// AnswerMode records which strategy produced an answer.
type AnswerMode string

const (
	AnswerModeEmpty      AnswerMode = "empty"
	AnswerModeExtractive AnswerMode = "extractive"
	AnswerModeGenerative AnswerMode = "generative"
	AnswerModeFallback   AnswerMode = "fallback"
)

// TraceEvent is an extensible event envelope for query tracing.
type TraceEvent struct {
	Kind TraceEventKind

	ChunkIDs []string
	Labels   []string
	Mode     AnswerMode

	DurationMs int64
	Error      string
}

// Tracer is a sink for query tracing events.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func RecordRetrievedChunkIDs(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventRetrievedChunkIDs, ChunkIDs: ids})
}

func RecordUsedChunkIDs(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventUsedChunkIDs, ChunkIDs: ids})
}

func RecordExpandedConcepts(t Tracer, labels ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventExpandedConcepts, Labels: labels})
}

func RecordAnswerMode(t Tracer, mode AnswerMode, took time.Duration, err error) {
	if t == nil {
		return
	}
	ev := TraceEvent{Kind: TraceEventAnswerMode, Mode: mode, DurationMs: took.Milliseconds()}
	if err != nil {
		ev.Error = err.Error()
	}
	t.Record(ev)
}

// QueryTrace collects what a question touched: retrieved and cited chunks,
// expanded concepts and the answer strategy.
//
// QueryTrace is safe for concurrent use.
type QueryTrace struct {
	mu sync.Mutex

	retrieved map[string]struct{}
	used      map[string]struct{}
	concepts  map[string]struct{}
	mode      AnswerMode
	modeErr   string
	duration  int64
}

type QueryTraceSnapshot struct {
	RetrievedChunkIDs []string   `json:"retrieved_chunk_ids"`
	UsedChunkIDs      []string   `json:"used_chunk_ids"`
	Concepts          []string   `json:"concepts"`
	Mode              AnswerMode `json:"mode"`
	Error             string     `json:"error,omitempty"`
	DurationMs        int64      `json:"duration_ms"`
}

func NewQueryTrace() *QueryTrace {
	return &QueryTrace{
		retrieved: make(map[string]struct{}),
		used:      make(map[string]struct{}),
		concepts:  make(map[string]struct{}),
	}
}

func (t *QueryTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case TraceEventRetrievedChunkIDs:
		addAll(t.retrieved, event.ChunkIDs)
	case TraceEventUsedChunkIDs:
		addAll(t.used, event.ChunkIDs)
	case TraceEventExpandedConcepts:
		addAll(t.concepts, event.Labels)
	case TraceEventAnswerMode:
		t.mode = event.Mode
		t.modeErr = event.Error
		t.duration = event.DurationMs
	}
}

func addAll(set map[string]struct{}, values []string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (t *QueryTrace) Snapshot() QueryTraceSnapshot {
	if t == nil {
		return QueryTraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return QueryTraceSnapshot{
		RetrievedChunkIDs: sortedKeys(t.retrieved),
		UsedChunkIDs:      sortedKeys(t.used),
		Concepts:          sortedKeys(t.concepts),
		Mode:              t.mode,
		Error:             t.modeErr,
		DurationMs:        t.duration,
	}
}
