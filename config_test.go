package strata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOptionsDefaults(t *testing.T) {
	vp := NewViper()
	vp.AddConfigPath(t.TempDir())

	opts, err := LoadOptions(vp)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxBreadcrumbs, opts.MaxBreadcrumbs)
	assert.Equal(t, DefaultMaxFlags, opts.MaxFlags)
	assert.False(t, opts.TracingEnabled())
	assert.NotEmpty(t, opts.ServerName)
}

func TestLoadOptionsFromEnv(t *testing.T) {
	t.Setenv("STRATA_RELEASE", "app@2.0.0")
	t.Setenv("STRATA_ENVIRONMENT", "production")
	t.Setenv("STRATA_MAX_BREADCRUMBS", "10")
	t.Setenv("STRATA_TRACES_SAMPLE_RATE", "0.25")
	t.Setenv("STRATA_PROPAGATE_TRACEPARENT", "true")

	opts, err := LoadOptions(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "app@2.0.0", opts.Release)
	assert.Equal(t, "production", opts.Environment)
	assert.Equal(t, 10, opts.MaxBreadcrumbs)
	assert.Equal(t, 0.25, opts.TracesSampleRate)
	assert.True(t, opts.PropagateTraceparent)
	assert.True(t, opts.TracingEnabled())
}

func TestLoadOptionsFromFile(t *testing.T) {
	dir := t.TempDir()
	config := []byte("dsn: https://abc123@ingest.example.com/1\nrelease: from-file\nenable_tracing: true\nmax_flags: 5\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "strata.yaml"), config, 0o600))

	vp := NewViper()
	vp.AddConfigPath(dir)
	opts, err := LoadOptions(vp)
	require.NoError(t, err)
	assert.Equal(t, "from-file", opts.Release)
	assert.Equal(t, 5, opts.MaxFlags)
	assert.True(t, opts.EnableTracing)
	assert.Equal(t, "abc123", opts.publicKey())
	assert.Equal(t, 1.0, opts.sampleRate())
}

func TestLoadOptionsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{name: "rate above one", config: "traces_sample_rate: 1.5\n"},
		{name: "negative rate", config: "traces_sample_rate: -0.1\n"},
		{name: "malformed yaml", config: "release: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "strata.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.config), 0o600))

			vp := viper.New()
			vp.SetConfigFile(path)
			_, err := LoadOptions(vp)
			assert.Error(t, err)
		})
	}
}

func TestClientOptionsBaggage(t *testing.T) {
	opts := ClientOptions{
		Dsn:              "https://public@example.com/42",
		Release:          "r",
		Environment:      "e",
		TracesSampleRate: 0.5,
	}
	b := opts.baggageOptions()
	assert.Equal(t, "public", b.PublicKey)
	assert.Equal(t, "r", b.Release)
	assert.Equal(t, "e", b.Environment)
	assert.Equal(t, 0.5, b.SampleRate)

	assert.Empty(t, ClientOptions{Dsn: "::not a url"}.publicKey())
}
