package strata

import (
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/kzs0/strata/trace"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DefaultMaxFlags is the feature flag buffer capacity used when none is configured.
const DefaultMaxFlags = 100

// ClientOptions configures a client and, through it, how scopes behave.
type ClientOptions struct {
	// Dsn is the ingestion endpoint. Its user part is the public key.
	Dsn string `mapstructure:"dsn"`
	// Release is the version of the application.
	Release string `mapstructure:"release"`
	// Environment is e.g. "production" or "staging".
	Environment string `mapstructure:"environment"`
	// ServerName defaults to the host name.
	ServerName string `mapstructure:"server_name"`
	// MaxBreadcrumbs bounds breadcrumbs per scope. Zero means
	// DefaultMaxBreadcrumbs, values above MaxBreadcrumbs are clamped and
	// negative values disable breadcrumbs.
	MaxBreadcrumbs int `mapstructure:"max_breadcrumbs"`
	// MaxFlags is the capacity of feature flag buffers.
	MaxFlags int `mapstructure:"max_flags"`
	// TracesSampleRate is the fraction of new traces sampled. Tracing is
	// enabled when it is positive.
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
	// EnableTracing enables tracing with a sample rate of 1.0 when no rate
	// or sampler is configured.
	EnableTracing bool `mapstructure:"enable_tracing"`
	// PropagateTraceparent also emits W3C traceparent headers.
	PropagateTraceparent bool `mapstructure:"propagate_traceparent"`
	// Debug turns on SDK diagnostic logging.
	Debug bool `mapstructure:"debug"`

	// DebugWriter receives diagnostic logs. Defaults to os.Stderr.
	DebugWriter io.Writer `mapstructure:"-"`
	// TracesSampler overrides TracesSampleRate.
	TracesSampler trace.Sampler `mapstructure:"-"`
	// BeforeBreadcrumb may rewrite a breadcrumb or drop it by returning nil.
	BeforeBreadcrumb func(b *Breadcrumb, hint BreadcrumbHint) *Breadcrumb `mapstructure:"-"`
	// BeforeSend may rewrite an error or message event or drop it by returning nil.
	BeforeSend func(event *Event, hint *Hint) *Event `mapstructure:"-"`
	// BeforeSendTransaction is BeforeSend for transactions.
	BeforeSendTransaction func(event *Event, hint *Hint) *Event `mapstructure:"-"`
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() ClientOptions {
	return ClientOptions{
		MaxBreadcrumbs: DefaultMaxBreadcrumbs,
		MaxFlags:       DefaultMaxFlags,
	}
}

// TracingEnabled reports whether spans should be recorded.
func (o ClientOptions) TracingEnabled() bool {
	return o.EnableTracing || o.TracesSampleRate > 0 || o.TracesSampler != nil
}

func (o ClientOptions) sampleRate() float64 {
	if o.TracesSampleRate > 0 {
		return o.TracesSampleRate
	}
	if o.EnableTracing {
		return 1.0
	}
	return 0
}

func (o ClientOptions) sampler() trace.Sampler {
	if o.TracesSampler != nil {
		return o.TracesSampler
	}
	return trace.NewParentBasedSampler(trace.NewRatioSampler(o.sampleRate()))
}

func (o ClientOptions) maxFlags() int {
	if o.MaxFlags <= 0 {
		return DefaultMaxFlags
	}
	return o.MaxFlags
}

// publicKey extracts the public key from the Dsn.
func (o ClientOptions) publicKey() string {
	if o.Dsn == "" {
		return ""
	}
	u, err := url.Parse(o.Dsn)
	if err != nil || u.User == nil {
		return ""
	}
	return u.User.Username()
}

func (o ClientOptions) baggageOptions() trace.BaggageOptions {
	return trace.BaggageOptions{
		Environment: o.Environment,
		Release:     o.Release,
		PublicKey:   o.publicKey(),
		SampleRate:  o.sampleRate(),
	}
}

// NewViper creates a viper instance reading strata.{yaml,toml,json} from
// the working directory and STRATA_ prefixed environment variables.
func NewViper() *viper.Viper {
	vp := viper.New()

	vp.SetConfigName("strata")
	vp.AddConfigPath(".")

	// env var must start with STRATA_, e.g. STRATA_MAX_BREADCRUMBS
	vp.SetEnvPrefix("strata")
	vp.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	vp.AutomaticEnv()
	return vp
}

// LoadOptions reads ClientOptions from vp. A missing config file is not an
// error. A nil vp uses NewViper.
//
// Usage:
//
//	opts, err := strata.LoadOptions(nil)
//	if err != nil {
//		return err
//	}
//	client := strata.NewClient(opts)
func LoadOptions(vp *viper.Viper) (ClientOptions, error) {
	if vp == nil {
		vp = NewViper()
	}

	defaults := DefaultOptions()
	if host, err := os.Hostname(); err == nil {
		defaults.ServerName = host
	}
	// AutomaticEnv only resolves keys viper knows about.
	vp.SetDefault("dsn", defaults.Dsn)
	vp.SetDefault("release", defaults.Release)
	vp.SetDefault("environment", defaults.Environment)
	vp.SetDefault("server_name", defaults.ServerName)
	vp.SetDefault("max_breadcrumbs", defaults.MaxBreadcrumbs)
	vp.SetDefault("max_flags", defaults.MaxFlags)
	vp.SetDefault("traces_sample_rate", defaults.TracesSampleRate)
	vp.SetDefault("enable_tracing", defaults.EnableTracing)
	vp.SetDefault("propagate_traceparent", defaults.PropagateTraceparent)
	vp.SetDefault("debug", defaults.Debug)

	if err := vp.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return ClientOptions{}, errors.Wrap(err, "strata: read config")
		}
	}

	var opts ClientOptions
	if err := vp.Unmarshal(&opts); err != nil {
		return ClientOptions{}, errors.Wrap(err, "strata: decode options")
	}
	if opts.TracesSampleRate < 0 || opts.TracesSampleRate > 1 {
		return ClientOptions{}, errors.Errorf("strata: traces_sample_rate must be within [0, 1], got %v", opts.TracesSampleRate)
	}
	return opts, nil
}
