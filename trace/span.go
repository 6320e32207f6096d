package trace

import (
	"sync"
	"time"
)

// Span is the active span a scope may reference. Scopes never own spans;
// they only read identity from them and hand them to nested operations.
type Span interface {
	TraceID() TraceID
	SpanID() SpanID
	ParentSpanID() SpanID
	Sampled() Sampled
	// IsValid reports whether the span carries usable trace identity.
	IsValid() bool
	// IsRecording reports whether the span will be reported when finished.
	IsRecording() bool
	Op() string
	SetTag(key, value string)
	SetData(key string, value any)
	SetStatus(status string)
	// TraceContext renders the span as the trace context of an event.
	TraceContext() map[string]any
	// ToSentryTrace renders the sentry-trace header value.
	ToSentryTrace() string
	// ToBaggage returns the baggage to propagate, or nil.
	ToBaggage() *Baggage
	StartChild(op string, opts ...StartSpanOption) Span
	Finish()
}

// SpanRecord is the reported form of a finished span.
type SpanRecord struct {
	TraceID        string            `json:"trace_id"`
	SpanID         string            `json:"span_id"`
	ParentSpanID   string            `json:"parent_span_id,omitempty"`
	Op             string            `json:"op,omitempty"`
	Description    string            `json:"description,omitempty"`
	Status         string            `json:"status,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	Data           map[string]any    `json:"data,omitempty"`
	StartTimestamp time.Time         `json:"start_timestamp"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Transaction is a finished, sampled root span together with its children.
type Transaction struct {
	Name    string
	Source  string
	Root    SpanRecord
	Spans   []SpanRecord
	Baggage *Baggage
}

// TraceContext renders the root span as the trace context of an event.
func (tx *Transaction) TraceContext() map[string]any {
	tc := map[string]any{
		"trace_id": tx.Root.TraceID,
		"span_id":  tx.Root.SpanID,
	}
	if tx.Root.ParentSpanID != "" {
		tc["parent_span_id"] = tx.Root.ParentSpanID
	}
	if tx.Root.Op != "" {
		tc["op"] = tx.Root.Op
	}
	if tx.Root.Status != "" {
		tc["status"] = tx.Root.Status
	}
	return tc
}

// recordingSpan is the span implementation used when tracing is enabled.
type recordingSpan struct {
	mu sync.Mutex

	traceID      TraceID
	spanID       SpanID
	parentSpanID SpanID
	sampled      Sampled
	op           string
	name         string
	source       string
	status       string
	tags         map[string]string
	data         map[string]any
	startTime    time.Time
	endTime      time.Time
	finished     bool

	// root is the transaction this span belongs to; root == self for transactions.
	root     *recordingSpan
	children []SpanRecord
	baggage  *Baggage
	onFinish func(*Transaction)
}

func (s *recordingSpan) TraceID() TraceID {
	return s.traceID
}

func (s *recordingSpan) SpanID() SpanID {
	return s.spanID
}

func (s *recordingSpan) ParentSpanID() SpanID {
	return s.parentSpanID
}

func (s *recordingSpan) Sampled() Sampled {
	return s.sampled
}

func (s *recordingSpan) IsValid() bool {
	return s.traceID.IsValid() && s.spanID.IsValid()
}

func (s *recordingSpan) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.finished && s.sampled.Bool()
}

func (s *recordingSpan) Op() string {
	return s.op
}

// Name returns the transaction name or span description.
func (s *recordingSpan) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *recordingSpan) SetTag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	if s.tags == nil {
		s.tags = make(map[string]string)
	}
	s.tags[key] = value
}

func (s *recordingSpan) SetData(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	if s.data == nil {
		s.data = make(map[string]any)
	}
	s.data[key] = value
}

func (s *recordingSpan) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.status = status
}

func (s *recordingSpan) TraceContext() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	tc := map[string]any{
		"trace_id": s.traceID.String(),
		"span_id":  s.spanID.String(),
	}
	if s.parentSpanID.IsValid() {
		tc["parent_span_id"] = s.parentSpanID.String()
	}
	if s.op != "" {
		tc["op"] = s.op
	}
	if s.status != "" {
		tc["status"] = s.status
	}
	return tc
}

func (s *recordingSpan) ToSentryTrace() string {
	return FormatSentryTrace(s.traceID, s.spanID, s.sampled)
}

func (s *recordingSpan) ToBaggage() *Baggage {
	s.root.mu.Lock()
	defer s.root.mu.Unlock()
	return s.root.baggage.Clone()
}

func (s *recordingSpan) StartChild(op string, opts ...StartSpanOption) Span {
	var options StartSpanOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &recordingSpan{
		traceID:      s.traceID,
		spanID:       NewSpanID(),
		parentSpanID: s.spanID,
		sampled:      s.sampled,
		op:           op,
		name:         options.Name,
		tags:         copyTags(options.Tags),
		startTime:    time.Now(),
		root:         s.root,
	}
}

// Finish ends the span. Children are recorded on their transaction; a
// sampled transaction is handed to its finish hook together with them.
func (s *recordingSpan) Finish() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.endTime = time.Now()
	record := s.recordLocked()
	s.mu.Unlock()

	if !s.sampled.Bool() {
		return
	}

	if s.root != s {
		s.root.mu.Lock()
		s.root.children = append(s.root.children, record)
		s.root.mu.Unlock()
		return
	}

	s.mu.Lock()
	tx := &Transaction{
		Name:    s.name,
		Source:  s.source,
		Root:    record,
		Spans:   append([]SpanRecord(nil), s.children...),
		Baggage: s.baggage.Clone(),
	}
	hook := s.onFinish
	s.mu.Unlock()

	if hook != nil {
		hook(tx)
	}
}

func (s *recordingSpan) recordLocked() SpanRecord {
	r := SpanRecord{
		TraceID:        s.traceID.String(),
		SpanID:         s.spanID.String(),
		Op:             s.op,
		Description:    s.name,
		Status:         s.status,
		Tags:           copyTags(s.tags),
		StartTimestamp: s.startTime,
		Timestamp:      s.endTime,
	}
	if s.parentSpanID.IsValid() {
		r.ParentSpanID = s.parentSpanID.String()
	}
	if len(s.data) > 0 {
		r.Data = make(map[string]any, len(s.data))
		for k, v := range s.data {
			r.Data[k] = v
		}
	}
	return r
}

func copyTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
