package strata

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kzs0/strata/trace"
	"github.com/pkg/errors"
)

// EventID is the 32 character hex identifier of a captured event.
type EventID string

func newEventID() EventID {
	return EventID(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Level is the severity of an event or breadcrumb.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// EventType distinguishes error/message events from transactions and check-ins.
type EventType string

const (
	EventTypeDefault     EventType = ""
	EventTypeTransaction EventType = "transaction"
	EventTypeCheckIn     EventType = "check_in"
)

// Context is one named block of structured data attached to an event.
type Context = map[string]any

// User identifies the user affected by an event.
type User struct {
	ID        string            `json:"id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	Username  string            `json:"username,omitempty"`
	Name      string            `json:"name,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// IsEmpty reports whether no user field is set.
func (u User) IsEmpty() bool {
	return u.ID == "" && u.Email == "" && u.IPAddress == "" &&
		u.Username == "" && u.Name == "" && len(u.Data) == 0
}

// Mechanism describes how an exception was caught.
type Mechanism struct {
	Type    string `json:"type,omitempty"`
	Handled *bool  `json:"handled,omitempty"`
}

// Exception is one error in a captured error chain.
type Exception struct {
	Type      string     `json:"type,omitempty"`
	Value     string     `json:"value,omitempty"`
	Module    string     `json:"module,omitempty"`
	Mechanism *Mechanism `json:"mechanism,omitempty"`
}

// CheckInStatus is the state reported by a monitor check-in.
type CheckInStatus string

const (
	CheckInStatusInProgress CheckInStatus = "in_progress"
	CheckInStatusOK         CheckInStatus = "ok"
	CheckInStatusError      CheckInStatus = "error"
)

// CheckIn is the payload of a check-in event.
type CheckIn struct {
	ID          string        `json:"check_in_id"`
	MonitorSlug string        `json:"monitor_slug"`
	Status      CheckInStatus `json:"status"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// Request describes the inbound HTTP request an event happened in.
type Request struct {
	URL         string            `json:"url,omitempty"`
	Method      string            `json:"method,omitempty"`
	QueryString string            `json:"query_string,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

var sensitiveHeaders = map[string]struct{}{
	"Authorization":   {},
	"Cookie":          {},
	"X-Forwarded-For": {},
	"X-Real-Ip":       {},
}

// NewRequest captures the parts of r worth reporting. Credentials and
// client addresses are left out.
func NewRequest(r *http.Request) *Request {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if _, skip := sensitiveHeaders[http.CanonicalHeaderKey(k)]; skip {
			continue
		}
		headers[k] = strings.Join(v, ",")
	}
	return &Request{
		URL:         scheme + "://" + r.Host + r.URL.Path,
		Method:      r.Method,
		QueryString: r.URL.RawQuery,
		Headers:     headers,
	}
}

// Event is the in-memory telemetry payload handed to a Client.
type Event struct {
	EventID         EventID            `json:"event_id,omitempty"`
	Type            EventType          `json:"type,omitempty"`
	Timestamp       time.Time          `json:"timestamp"`
	StartTime       time.Time          `json:"start_timestamp,omitempty"`
	Platform        string             `json:"platform,omitempty"`
	Level           Level              `json:"level,omitempty"`
	Logger          string             `json:"logger,omitempty"`
	Message         string             `json:"message,omitempty"`
	Release         string             `json:"release,omitempty"`
	Environment     string             `json:"environment,omitempty"`
	ServerName      string             `json:"server_name,omitempty"`
	Fingerprint     []string           `json:"fingerprint,omitempty"`
	User            User               `json:"user,omitempty"`
	Tags            map[string]string  `json:"tags,omitempty"`
	Extra           map[string]any     `json:"extra,omitempty"`
	Contexts        map[string]Context `json:"contexts,omitempty"`
	Breadcrumbs     []*Breadcrumb      `json:"breadcrumbs,omitempty"`
	Exception       []Exception        `json:"exception,omitempty"`
	Request         *Request           `json:"request,omitempty"`
	Transaction     string             `json:"transaction,omitempty"`
	TransactionInfo map[string]string  `json:"transaction_info,omitempty"`
	Spans           []trace.SpanRecord `json:"spans,omitempty"`
	CheckIn         *CheckIn           `json:"check_in,omitempty"`
}

// NewEvent returns an empty event with initialized maps.
func NewEvent() *Event {
	return &Event{
		Tags:     make(map[string]string),
		Extra:    make(map[string]any),
		Contexts: make(map[string]Context),
	}
}

func (e *Event) isTransaction() bool {
	return e.Type == EventTypeTransaction
}

func (e *Event) isCheckIn() bool {
	return e.Type == EventTypeCheckIn
}

// category maps the event to the data category used by lost-event reports.
func (e *Event) category() string {
	switch e.Type {
	case EventTypeTransaction:
		return "transaction"
	case EventTypeCheckIn:
		return "check_in"
	default:
		return "error"
	}
}

// maxErrorDepth bounds how far an error chain is walked.
const maxErrorDepth = 10

// exceptionsFromError walks the wrap chain of err, outermost error last.
func exceptionsFromError(err error) []Exception {
	var chain []Exception
	for i := 0; err != nil && i < maxErrorDepth; i++ {
		t := reflect.TypeOf(err)
		chain = append(chain, Exception{
			Type:   t.String(),
			Value:  err.Error(),
			Module: t.PkgPath(),
		})
		err = errors.Unwrap(err)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Attachment is a file sent along with an event.
type Attachment struct {
	Filename    string
	ContentType string
	Payload     []byte
	// AddToTransactions also sends the attachment with transaction events.
	AddToTransactions bool
}

// Hint carries data about the origin of an event to processors.
type Hint struct {
	OriginalException error
	Attachments       []*Attachment
	Data              map[string]any

	// applying are the scopes currently applied with this hint.
	applying []*Scope
}
