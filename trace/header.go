package trace

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Header names used for trace propagation.
const (
	SentryTraceHeader = "sentry-trace"
	BaggageHeader     = "baggage"
	TraceparentHeader = "traceparent"
)

// W3C traceparent layout: version-trace-id-parent-id-trace-flags
// Example: 00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01
const (
	w3cVersionLen = 2
	w3cFlagsLen   = 2
	w3cFieldCount = 4

	// SampledFlag is the sampled bit of the W3C trace-flags field.
	SampledFlag = 0x01
)

var (
	ErrInvalidTraceHeader = errors.New("invalid trace header")
	ErrInvalidTraceparent = errors.New("invalid traceparent header")
)

// sentry-trace format: <32 hex trace id>-<16 hex span id>[-<0|1>]
var sentryTraceRegex = regexp.MustCompile(
	`^[ \t]*` +
		`([0-9a-f]{32})?` +
		`-?([0-9a-f]{16})?` +
		`-?([01])?` +
		`[ \t]*$`,
)

// TraceparentData is the remote parent described by an incoming trace header.
type TraceparentData struct {
	TraceID       TraceID
	ParentSpanID  SpanID
	ParentSampled Sampled
}

// ParseSentryTrace parses a sentry-trace header value. A W3C value of the
// form 00-<trace>-<span>-00 is unwrapped first. The trace id is required;
// the parent span id and the sampled flag are optional.
func ParseSentryTrace(header string) (TraceparentData, error) {
	var data TraceparentData

	if header == "" {
		return data, ErrInvalidTraceHeader
	}
	if strings.HasPrefix(header, "00-") && strings.HasSuffix(header, "-00") && len(header) > 6 {
		header = header[3 : len(header)-3]
	}

	match := sentryTraceRegex.FindStringSubmatch(header)
	if match == nil || match[1] == "" {
		return data, errors.Wrapf(ErrInvalidTraceHeader, "%q", header)
	}

	traceID, err := ParseTraceID(match[1])
	if err != nil {
		return data, errors.Wrap(ErrInvalidTraceHeader, err.Error())
	}
	data.TraceID = traceID

	if match[2] != "" {
		spanID, err := ParseSpanID(match[2])
		if err != nil {
			return data, errors.Wrap(ErrInvalidTraceHeader, err.Error())
		}
		data.ParentSpanID = spanID
	}

	switch match[3] {
	case "1":
		data.ParentSampled = SampledTrue
	case "0":
		data.ParentSampled = SampledFalse
	}

	return data, nil
}

// FormatSentryTrace formats a sentry-trace header value. The sampled flag is
// only appended when a decision exists.
func FormatSentryTrace(traceID TraceID, spanID SpanID, sampled Sampled) string {
	switch sampled {
	case SampledTrue:
		return fmt.Sprintf("%s-%s-1", traceID, spanID)
	case SampledFalse:
		return fmt.Sprintf("%s-%s-0", traceID, spanID)
	default:
		return fmt.Sprintf("%s-%s", traceID, spanID)
	}
}

// ParseTraceparent parses a W3C traceparent header value.
// Version ff is forbidden; future versions are parsed for their first four fields.
func ParseTraceparent(value string) (TraceparentData, error) {
	var data TraceparentData

	fields := strings.Split(strings.TrimSpace(value), "-")
	if len(fields) < w3cFieldCount {
		return data, ErrInvalidTraceparent
	}

	version, traceHex, spanHex, flagsHex := fields[0], fields[1], fields[2], fields[3]
	if len(version) != w3cVersionLen || !isLowercaseHex(version) || version == "ff" {
		return data, errors.Wrap(ErrInvalidTraceparent, "bad version")
	}
	if version == "00" && len(fields) != w3cFieldCount {
		return data, errors.Wrap(ErrInvalidTraceparent, "trailing data for version 00")
	}
	if !isLowercaseHex(traceHex) || !isLowercaseHex(spanHex) {
		return data, errors.Wrap(ErrInvalidTraceparent, "ids must be lowercase hex")
	}

	traceID, err := ParseTraceID(traceHex)
	if err != nil {
		return data, errors.Wrap(ErrInvalidTraceparent, err.Error())
	}
	spanID, err := ParseSpanID(spanHex)
	if err != nil {
		return data, errors.Wrap(ErrInvalidTraceparent, err.Error())
	}

	if len(flagsHex) != w3cFlagsLen || !isLowercaseHex(flagsHex) {
		return data, errors.Wrap(ErrInvalidTraceparent, "bad flags")
	}
	flags, err := hex.DecodeString(flagsHex)
	if err != nil {
		return data, errors.Wrap(ErrInvalidTraceparent, err.Error())
	}

	data.TraceID = traceID
	data.ParentSpanID = spanID
	data.ParentSampled = SampledFromBool(flags[0]&SampledFlag != 0)
	return data, nil
}

// FormatTraceparent formats a W3C traceparent header value using version 00.
// An undefined decision is written as not sampled.
func FormatTraceparent(traceID TraceID, spanID SpanID, sampled Sampled) string {
	flags := byte(0)
	if sampled.Bool() {
		flags |= SampledFlag
	}
	return fmt.Sprintf("00-%s-%s-%02x", traceID, spanID, flags)
}

// NormalizeIncoming canonicalises the keys of an incoming carrier so that
// HTTP headers, CGI style environments (HTTP_SENTRY_TRACE) and hand built
// maps all resolve to the lower-case, dash separated header names.
func NormalizeIncoming(incoming map[string]string) map[string]string {
	normalized := make(map[string]string, len(incoming))
	for key, value := range incoming {
		key = strings.TrimPrefix(key, "HTTP_")
		key = strings.ToLower(strings.ReplaceAll(key, "_", "-"))
		normalized[key] = value
	}
	return normalized
}

func isLowercaseHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
