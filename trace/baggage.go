package trace

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/kzs0/strata/internal/debuglog"
	"go.opentelemetry.io/otel/baggage"
)

// SentryPrefix marks baggage members that belong to the dynamic sampling context.
const SentryPrefix = "sentry-"

// Item is one member of the dynamic sampling context, keyed without the prefix.
type Item struct {
	Key   string
	Value string
}

// Baggage is an ordered dynamic sampling context plus any third-party
// members that arrived with it. Baggage received from an upstream service
// is frozen: this process forwards it but does not add to it.
type Baggage struct {
	items      []Item
	thirdParty string
	mutable    bool
}

// NewBaggage creates a mutable baggage holding the given sentry items.
func NewBaggage(items ...Item) *Baggage {
	b := &Baggage{mutable: true}
	for _, it := range items {
		b.Set(it.Key, it.Value)
	}
	return b
}

// ParseBaggage parses an incoming baggage header. Members with the sentry
// prefix form the dynamic sampling context; all other members are kept
// verbatim for forwarding. Malformed members are skipped.
func ParseBaggage(header string) *Baggage {
	b := &Baggage{mutable: true}
	var thirdParty []string

	for _, raw := range strings.Split(header, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" || !strings.Contains(raw, "=") {
			continue
		}
		if !strings.HasPrefix(raw, SentryPrefix) {
			thirdParty = append(thirdParty, raw)
			continue
		}

		parsed, err := baggage.Parse(raw)
		if err != nil {
			debuglog.Debugf("strata: skipping malformed baggage member %q: %v", raw, err)
			continue
		}
		for _, m := range parsed.Members() {
			key := strings.TrimPrefix(m.Key(), SentryPrefix)
			if key == "" {
				continue
			}
			b.set(key, m.Value())
		}
		b.mutable = false
	}

	b.thirdParty = strings.Join(thirdParty, ",")
	return b
}

// BaggageOptions carries the client settings that seed an outgoing baggage.
type BaggageOptions struct {
	Environment string
	Release     string
	PublicKey   string
	SampleRate  float64
}

// BaggageFromOptions builds the frozen baggage this process originates for traceID.
func BaggageFromOptions(traceID TraceID, opts BaggageOptions) *Baggage {
	b := &Baggage{mutable: true}
	if traceID.IsValid() {
		b.Set("trace_id", traceID.String())
	}
	if opts.Environment != "" {
		b.Set("environment", opts.Environment)
	}
	if opts.Release != "" {
		b.Set("release", opts.Release)
	}
	if opts.PublicKey != "" {
		b.Set("public_key", opts.PublicKey)
	}
	if opts.SampleRate > 0 {
		b.Set("sample_rate", strconv.FormatFloat(opts.SampleRate, 'f', -1, 64))
	}
	b.mutable = false
	return b
}

// Mutable reports whether members may still be added by this process.
func (b *Baggage) Mutable() bool {
	return b != nil && b.mutable
}

// Freeze marks the baggage immutable.
func (b *Baggage) Freeze() {
	if b != nil {
		b.mutable = false
	}
}

// Set adds or replaces a sentry item. Frozen baggage is left untouched.
func (b *Baggage) Set(key, value string) {
	if b == nil || !b.mutable {
		return
	}
	b.set(key, value)
}

func (b *Baggage) set(key, value string) {
	for i := range b.items {
		if b.items[i].Key == key {
			b.items[i].Value = value
			return
		}
	}
	b.items = append(b.items, Item{Key: key, Value: value})
}

// Get returns a sentry item by key.
func (b *Baggage) Get(key string) (string, bool) {
	if b == nil {
		return "", false
	}
	for _, it := range b.items {
		if it.Key == key {
			return it.Value, true
		}
	}
	return "", false
}

// Items returns a copy of the sentry items in order.
func (b *Baggage) Items() []Item {
	if b == nil {
		return nil
	}
	items := make([]Item, len(b.items))
	copy(items, b.items)
	return items
}

// ThirdParty returns the raw non-sentry members.
func (b *Baggage) ThirdParty() string {
	if b == nil {
		return ""
	}
	return b.thirdParty
}

// DynamicSamplingContext returns the sentry items as a map.
func (b *Baggage) DynamicSamplingContext() map[string]string {
	if b == nil {
		return nil
	}
	dsc := make(map[string]string, len(b.items))
	for _, it := range b.items {
		dsc[it.Key] = it.Value
	}
	return dsc
}

// Clone returns an independent copy.
func (b *Baggage) Clone() *Baggage {
	if b == nil {
		return nil
	}
	return &Baggage{
		items:      b.Items(),
		thirdParty: b.thirdParty,
		mutable:    b.mutable,
	}
}

// Serialize renders the baggage header value. Sentry items come first, in
// insertion order, with percent-encoded values.
func (b *Baggage) Serialize(includeThirdParty bool) string {
	if b == nil {
		return ""
	}

	parts := make([]string, 0, len(b.items)+1)
	for _, it := range b.items {
		m, err := baggage.NewMember(SentryPrefix+it.Key, url.PathEscape(it.Value))
		if err != nil {
			debuglog.Debugf("strata: dropping baggage item %q: %v", it.Key, err)
			continue
		}
		parts = append(parts, m.String())
	}
	if includeThirdParty && b.thirdParty != "" {
		parts = append(parts, b.thirdParty)
	}
	return strings.Join(parts, ",")
}

// String renders the sentry items only.
func (b *Baggage) String() string {
	return b.Serialize(false)
}
