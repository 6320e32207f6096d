package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const incomingTrace = "771a43a4192642f0b136d5159a501700-1234567890abcdef-1"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SENTRY_TRACE", "")
	t.Setenv("SENTRY_BAGGAGE", "")

	var out bytes.Buffer
	root := New(viper.New())
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHeadersCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains []string
		lines    int
	}{
		{
			name:     "new trace",
			args:     []string{"headers", "--release", "cli-1"},
			contains: []string{"sentry-trace: ", "baggage: sentry-trace_id=", "sentry-release=cli-1"},
			lines:    2,
		},
		{
			name:     "continued trace",
			args:     []string{"headers", "--trace", incomingTrace, "--baggage", "sentry-release=up,vendor=x"},
			contains: []string{"sentry-trace: 771a43a4192642f0b136d5159a501700-", "sentry-release=up", "vendor=x"},
			lines:    2,
		},
		{
			name:     "with traceparent",
			args:     []string{"headers", "--trace", incomingTrace, "--propagate-traceparent"},
			contains: []string{"traceparent: 00-771a43a4192642f0b136d5159a501700-"},
			lines:    3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), tt.lines)
		})
	}
}

func TestEnvCommand(t *testing.T) {
	out, err := run(t, "env", "--trace", incomingTrace)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "SENTRY_TRACE=771a43a4192642f0b136d5159a501700-"))
	assert.Contains(t, out, "SENTRY_BAGGAGE=")

	out, err = run(t, "env", "--export")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "export SENTRY_TRACE='"))
}

func TestEnvCommandReadsEnvironment(t *testing.T) {
	var out bytes.Buffer
	t.Setenv("SENTRY_TRACE", incomingTrace)
	root := New(viper.New())
	root.SetOut(&out)
	root.SetArgs([]string{"env"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "SENTRY_TRACE=771a43a4192642f0b136d5159a501700-")
}

func TestMetaCommand(t *testing.T) {
	out, err := run(t, "meta", "--trace", incomingTrace)
	require.NoError(t, err)
	assert.Contains(t, out, `<meta name="sentry-trace" content="771a43a4192642f0b136d5159a501700-`)
	assert.Contains(t, out, `<meta name="baggage"`)
}

func TestParseCommand(t *testing.T) {
	out, err := run(t, "parse", incomingTrace, "--with-baggage", "sentry-release=v1,vendor=x")
	require.NoError(t, err)
	assert.Contains(t, out, "format:         sentry-trace")
	assert.Contains(t, out, "trace_id:       771a43a4192642f0b136d5159a501700")
	assert.Contains(t, out, "parent_span_id: 1234567890abcdef")
	assert.Contains(t, out, "sampled:        true")
	assert.Contains(t, out, "baggage.release: v1")
	assert.Contains(t, out, "third_party:    vendor=x")

	out, err = run(t, "parse", "00-771a43a4192642f0b136d5159a501700-1234567890abcdef-00")
	require.NoError(t, err)
	assert.Contains(t, out, "format:         traceparent")
	assert.Contains(t, out, "sampled:        false")

	_, err = run(t, "parse", "not-a-header")
	assert.Error(t, err)
}

func TestInvalidSampleRate(t *testing.T) {
	_, err := run(t, "headers", "--traces-sample-rate", "2")
	assert.Error(t, err)
}
