package trace

import (
	"fmt"
	"html"
	"strings"
)

// MetaTags renders the propagation headers as HTML meta tags for
// server-rendered pages. Empty values produce no tag.
func MetaTags(sentryTrace, baggage string) string {
	var b strings.Builder
	if sentryTrace != "" {
		fmt.Fprintf(&b, `<meta name="%s" content="%s">`, SentryTraceHeader, html.EscapeString(sentryTrace))
	}
	if baggage != "" {
		fmt.Fprintf(&b, `<meta name="%s" content="%s">`, BaggageHeader, html.EscapeString(baggage))
	}
	return b.String()
}
