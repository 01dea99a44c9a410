package dashsync

import "time"

const (
	defaultNamespace       = "dashsync"
	defaultTTL             = 10 * time.Minute
	defaultCleanupInterval = time.Minute
	defaultEntryRetention  = 10 * time.Minute
	defaultGenRetention    = 24 * time.Hour
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
