package trace

import (
	"os"
	"strings"
)

// Environment variables consulted when a scope is constructed.
const (
	EnvTrace          = "SENTRY_TRACE"
	EnvBaggage        = "SENTRY_BAGGAGE"
	EnvUseEnvironment = "SENTRY_USE_ENVIRONMENT"
)

var falseValues = map[string]struct{}{
	"false": {},
	"no":    {},
	"off":   {},
	"n":     {},
	"0":     {},
}

// IncomingFromEnvironment returns the trace carrier described by the process
// environment, or nil when the bootstrap is disabled or nothing is set.
func IncomingFromEnvironment() map[string]string {
	return incomingFromLookup(os.Getenv)
}

func incomingFromLookup(getenv func(string) string) map[string]string {
	if _, off := falseValues[strings.ToLower(strings.TrimSpace(getenv(EnvUseEnvironment)))]; off {
		return nil
	}

	incoming := make(map[string]string, 2)
	if v := getenv(EnvTrace); v != "" {
		incoming[SentryTraceHeader] = v
	}
	if v := getenv(EnvBaggage); v != "" {
		incoming[BaggageHeader] = v
	}
	if len(incoming) == 0 {
		return nil
	}
	return incoming
}

// EnvExports renders the variables a child process needs to continue the
// trace, as KEY=value pairs.
func EnvExports(sentryTrace, baggage string) []string {
	exports := make([]string, 0, 2)
	if sentryTrace != "" {
		exports = append(exports, EnvTrace+"="+sentryTrace)
	}
	if baggage != "" {
		exports = append(exports, EnvBaggage+"="+baggage)
	}
	return exports
}
