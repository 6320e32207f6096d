package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPropagationContext(t *testing.T) {
	a := NewPropagationContext()
	b := NewPropagationContext()

	assert.True(t, a.TraceID().IsValid())
	assert.True(t, a.SpanID().IsValid())
	assert.False(t, a.ParentSpanID().IsValid())
	assert.Equal(t, SampledUndefined, a.ParentSampled())
	assert.NotEqual(t, a.TraceID(), b.TraceID())
	assert.False(t, a.HasBaggage())
}

func TestPropagationContextFromIncoming(t *testing.T) {
	t.Run("sentry-trace", func(t *testing.T) {
		pc, ok := PropagationContextFromIncoming(map[string]string{
			"sentry-trace": testTraceHex + "-" + testSpanHex + "-1",
			"baggage":      "sentry-release=1.0",
		})
		require.True(t, ok)
		assert.Equal(t, testTraceHex, pc.TraceID().String())
		assert.Equal(t, testSpanHex, pc.ParentSpanID().String())
		assert.NotEqual(t, testSpanHex, pc.SpanID().String())
		assert.Equal(t, SampledTrue, pc.ParentSampled())
		require.True(t, pc.HasBaggage())
		assert.False(t, pc.Baggage().Mutable())
	})

	t.Run("cgi style keys", func(t *testing.T) {
		pc, ok := PropagationContextFromIncoming(map[string]string{
			"HTTP_SENTRY_TRACE": testTraceHex + "-" + testSpanHex,
		})
		require.True(t, ok)
		assert.Equal(t, testTraceHex, pc.TraceID().String())
	})

	t.Run("traceparent fallback", func(t *testing.T) {
		pc, ok := PropagationContextFromIncoming(map[string]string{
			"sentry-trace": "garbage",
			"traceparent":  "00-" + testTraceHex + "-" + testSpanHex + "-00",
		})
		require.True(t, ok)
		assert.Equal(t, testTraceHex, pc.TraceID().String())
		assert.Equal(t, SampledFalse, pc.ParentSampled())
	})

	t.Run("baggage only", func(t *testing.T) {
		pc, ok := PropagationContextFromIncoming(map[string]string{
			"baggage": "sentry-release=1.0",
		})
		require.True(t, ok)
		assert.True(t, pc.TraceID().IsValid())
		assert.True(t, pc.HasBaggage())
	})

	t.Run("nothing usable", func(t *testing.T) {
		_, ok := PropagationContextFromIncoming(map[string]string{"sentry-trace": "garbage"})
		assert.False(t, ok)

		_, ok = PropagationContextFromIncoming(nil)
		assert.False(t, ok)
	})
}

func TestPropagationContextRendering(t *testing.T) {
	pc, ok := PropagationContextFromIncoming(map[string]string{
		"sentry-trace": testTraceHex + "-" + testSpanHex + "-1",
	})
	require.True(t, ok)

	assert.Equal(t, testTraceHex+"-"+pc.SpanID().String()+"-1", pc.Traceparent())
	assert.Len(t, NewPropagationContext().Traceparent(), 32+1+16)

	tc := pc.TraceContext()
	assert.Equal(t, testTraceHex, tc["trace_id"])
	assert.Equal(t, pc.SpanID().String(), tc["span_id"])
	assert.Equal(t, testSpanHex, tc["parent_span_id"])

	fresh := NewPropagationContext().TraceContext()
	assert.NotContains(t, fresh, "parent_span_id")
}
