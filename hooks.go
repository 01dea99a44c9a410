package dashsync

// Discard reasons reported through Hooks.FetchDiscarded.
const (
	ReasonSuperseded   = "superseded"   // a newer request for the key already applied
	ReasonUnsubscribed = "unsubscribed" // issuing subscription closed, nobody else watches
	ReasonCancelled    = "cancelled"    // caller context ended before the response
	ReasonInvalidated  = "invalidated"  // key invalidated while the request was in flight
	ReasonReset        = "reset"        // cache reset while the request was in flight
)

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
type Hooks interface {
	// A loader returned an error; the entry keeps its last good data.
	FetchFailed(key Key, err error)

	// A response arrived but was not applied.
	FetchDiscarded(key Key, reason string)

	// Invalidate matched n entries for pattern.
	Invalidated(pattern Key, n int)

	// A stored frame could not be used and was deleted.
	// reason ∈ {"corrupt", "value_decode"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// GenStore errors. count is the number of keys involved.
	GenSnapshotError(count int, err error)
	GenBumpError(storageKey string, err error)

	// Both gen bump and payload delete failed during Invalidate.
	InvalidateOutage(key Key, bumpErr, delErr error)

	// A mutation's server call failed.
	MutationFailed(name string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) FetchFailed(Key, error)             {}
func (NopHooks) FetchDiscarded(Key, string)         {}
func (NopHooks) Invalidated(Key, int)               {}
func (NopHooks) SelfHeal(string, string)            {}
func (NopHooks) ProviderSetRejected(string)         {}
func (NopHooks) GenSnapshotError(int, error)        {}
func (NopHooks) GenBumpError(string, error)         {}
func (NopHooks) InvalidateOutage(Key, error, error) {}
func (NopHooks) MutationFailed(string, error)       {}
