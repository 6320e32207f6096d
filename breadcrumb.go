package strata

import (
	"sort"
	"time"

	"github.com/kzs0/strata/internal/debuglog"
)

const (
	// DefaultMaxBreadcrumbs is used when no limit is configured.
	DefaultMaxBreadcrumbs = 100
	// MaxBreadcrumbs is the hard upper bound of breadcrumbs kept per scope.
	MaxBreadcrumbs = 100
)

// Breadcrumb is a timestamped record of something that happened before an
// event was captured.
type Breadcrumb struct {
	Type      string         `json:"type,omitempty"`
	Category  string         `json:"category,omitempty"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Level     Level          `json:"level,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// BreadcrumbHint carries the raw data a breadcrumb was built from to the
// BeforeBreadcrumb hook.
type BreadcrumbHint map[string]any

func (b *Breadcrumb) clone() *Breadcrumb {
	c := *b
	if b.Data != nil {
		c.Data = make(map[string]any, len(b.Data))
		for k, v := range b.Data {
			c.Data[k] = v
		}
	}
	return &c
}

// limitBreadcrumbs resolves the configured limit, clamped to MaxBreadcrumbs.
func limitBreadcrumbs(configured int) int {
	switch {
	case configured < 0:
		return 0
	case configured == 0:
		return DefaultMaxBreadcrumbs
	case configured > MaxBreadcrumbs:
		return MaxBreadcrumbs
	default:
		return configured
	}
}

// sortBreadcrumbs orders crumbs by timestamp. Crumbs without a timestamp
// cannot be ordered, so the list is left as is.
func sortBreadcrumbs(crumbs []*Breadcrumb) {
	defer func() {
		if r := recover(); r != nil {
			debuglog.Debugf("strata: error when sorting breadcrumbs: %v", r)
		}
	}()

	for _, c := range crumbs {
		if c == nil || c.Timestamp.IsZero() {
			debuglog.Debugf("strata: breadcrumb without timestamp, skipping sort")
			return
		}
	}
	sort.SliceStable(crumbs, func(i, j int) bool {
		return crumbs[i].Timestamp.Before(crumbs[j].Timestamp)
	})
}
