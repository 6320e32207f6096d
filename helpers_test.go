package strata

import (
	"testing"

	"github.com/kzs0/strata/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// newTestStore returns a store whose global scope is bound to a client
// delivering into a MemoryTransport.
func newTestStore(t *testing.T, opts ClientOptions, clientOpts ...ClientOption) (*Store, *MemoryTransport) {
	t.Helper()
	t.Setenv("SENTRY_TRACE", "")
	t.Setenv("SENTRY_BAGGAGE", "")

	transport := NewMemoryTransport()
	st := NewStore(nil)
	st.Global().SetClient(NewClient(opts, append([]ClientOption{WithTransport(transport)}, clientOpts...)...))
	return st, transport
}

func newTestRecorder(t *testing.T) *report.Recorder {
	t.Helper()
	r, err := report.NewRecorder(prometheus.NewRegistry())
	require.NoError(t, err)
	return r
}

func activeClient(opts ClientOptions) Client {
	return NewClient(opts)
}
