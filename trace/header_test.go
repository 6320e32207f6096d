package trace

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTraceHex = "771a43a4192642f0b136d5159a501700"
	testSpanHex  = "1234567890abcdef"
)

func TestParseSentryTrace(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		wantErr     bool
		wantSpan    bool
		wantSampled Sampled
	}{
		{name: "full sampled", header: testTraceHex + "-" + testSpanHex + "-1", wantSpan: true, wantSampled: SampledTrue},
		{name: "full unsampled", header: testTraceHex + "-" + testSpanHex + "-0", wantSpan: true, wantSampled: SampledFalse},
		{name: "no flag", header: testTraceHex + "-" + testSpanHex, wantSpan: true, wantSampled: SampledUndefined},
		{name: "trace only", header: testTraceHex, wantSampled: SampledUndefined},
		{name: "surrounding whitespace", header: "  " + testTraceHex + "-" + testSpanHex + "-1\t", wantSpan: true, wantSampled: SampledTrue},
		{name: "w3c wrapped", header: "00-" + testTraceHex + "-" + testSpanHex + "-00", wantSpan: true},
		{name: "empty", header: "", wantErr: true},
		{name: "garbage", header: "not-a-trace", wantErr: true},
		{name: "uppercase", header: "771A43A4192642F0B136D5159A501700-" + testSpanHex, wantErr: true},
		{name: "span only", header: "-" + testSpanHex + "-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ParseSentryTrace(tt.header)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTraceHeader))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testTraceHex, data.TraceID.String())
			assert.Equal(t, tt.wantSpan, data.ParentSpanID.IsValid())
			if tt.wantSpan {
				assert.Equal(t, testSpanHex, data.ParentSpanID.String())
			}
			assert.Equal(t, tt.wantSampled, data.ParentSampled)
		})
	}
}

func TestFormatSentryTrace(t *testing.T) {
	traceID, err := ParseTraceID(testTraceHex)
	require.NoError(t, err)
	spanID, err := ParseSpanID(testSpanHex)
	require.NoError(t, err)

	assert.Equal(t, testTraceHex+"-"+testSpanHex+"-1", FormatSentryTrace(traceID, spanID, SampledTrue))
	assert.Equal(t, testTraceHex+"-"+testSpanHex+"-0", FormatSentryTrace(traceID, spanID, SampledFalse))
	assert.Equal(t, testTraceHex+"-"+testSpanHex, FormatSentryTrace(traceID, spanID, SampledUndefined))
}

func TestParseTraceparent(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		wantErr     bool
		wantSampled Sampled
	}{
		{name: "sampled", value: "00-" + testTraceHex + "-" + testSpanHex + "-01", wantSampled: SampledTrue},
		{name: "not sampled", value: "00-" + testTraceHex + "-" + testSpanHex + "-00", wantSampled: SampledFalse},
		{name: "future version with extra fields", value: "cc-" + testTraceHex + "-" + testSpanHex + "-01-extra", wantSampled: SampledTrue},
		{name: "forbidden version", value: "ff-" + testTraceHex + "-" + testSpanHex + "-01", wantErr: true},
		{name: "version 00 with extra field", value: "00-" + testTraceHex + "-" + testSpanHex + "-01-extra", wantErr: true},
		{name: "zero trace id", value: "00-00000000000000000000000000000000-" + testSpanHex + "-01", wantErr: true},
		{name: "uppercase", value: "00-771A43A4192642F0B136D5159A501700-" + testSpanHex + "-01", wantErr: true},
		{name: "short", value: "00-" + testTraceHex, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ParseTraceparent(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTraceparent))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testTraceHex, data.TraceID.String())
			assert.Equal(t, testSpanHex, data.ParentSpanID.String())
			assert.Equal(t, tt.wantSampled, data.ParentSampled)
		})
	}
}

func TestFormatTraceparent(t *testing.T) {
	traceID, _ := ParseTraceID(testTraceHex)
	spanID, _ := ParseSpanID(testSpanHex)

	assert.Equal(t, "00-"+testTraceHex+"-"+testSpanHex+"-01", FormatTraceparent(traceID, spanID, SampledTrue))
	assert.Equal(t, "00-"+testTraceHex+"-"+testSpanHex+"-00", FormatTraceparent(traceID, spanID, SampledUndefined))

	data, err := ParseTraceparent(FormatTraceparent(traceID, spanID, SampledTrue))
	require.NoError(t, err)
	assert.Equal(t, traceID, data.TraceID)
}

func TestNormalizeIncoming(t *testing.T) {
	got := NormalizeIncoming(map[string]string{
		"HTTP_SENTRY_TRACE": "a",
		"Baggage":           "b",
		"traceparent":       "c",
	})
	assert.Equal(t, map[string]string{
		"sentry-trace": "a",
		"baggage":      "b",
		"traceparent":  "c",
	}, got)
}

func TestMetaTags(t *testing.T) {
	got := MetaTags(testTraceHex+"-"+testSpanHex, `sentry-release=a"b`)
	assert.Equal(t,
		`<meta name="sentry-trace" content="`+testTraceHex+"-"+testSpanHex+`">`+
			`<meta name="baggage" content="sentry-release=a&#34;b">`,
		got)
	assert.Empty(t, MetaTags("", ""))
}

func TestIncomingFromLookup(t *testing.T) {
	env := map[string]string{
		EnvTrace:   testTraceHex + "-" + testSpanHex + "-1",
		EnvBaggage: "sentry-release=1.0",
	}
	lookup := func(k string) string { return env[k] }

	incoming := incomingFromLookup(lookup)
	assert.Equal(t, env[EnvTrace], incoming[SentryTraceHeader])
	assert.Equal(t, env[EnvBaggage], incoming[BaggageHeader])

	for _, off := range []string{"false", "No", "OFF", "n", "0"} {
		env[EnvUseEnvironment] = off
		assert.Nil(t, incomingFromLookup(lookup), off)
	}

	env[EnvUseEnvironment] = "yes"
	assert.NotNil(t, incomingFromLookup(lookup))

	assert.Nil(t, incomingFromLookup(func(string) string { return "" }))
}

func TestEnvExports(t *testing.T) {
	assert.Equal(t,
		[]string{"SENTRY_TRACE=abc", "SENTRY_BAGGAGE=sentry-release=1"},
		EnvExports("abc", "sentry-release=1"))
	assert.Empty(t, EnvExports("", ""))
}
