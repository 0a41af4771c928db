package tagcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The pool calls them on hot paths.
type Hooks interface {
	// An entry was deleted by the pool on read.
	// reason ∈ {"corrupt", "tag_invalidated", "value_decode"}
	SelfHeal(storageKey, reason string)

	// The provider failed; op ∈ {"get", "get_many", "set", "del"}.
	// Read failures are served as misses.
	ProviderError(op string, err error)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// Tag version snapshot failed; count is the number of tags involved.
	TagSnapshotError(count int, err error)

	// Tag version bump failed during InvalidateTags.
	TagBumpError(tag string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)     {}
func (NopHooks) ProviderError(string, error) {}
func (NopHooks) ProviderSetRejected(string)  {}
func (NopHooks) TagSnapshotError(int, error) {}
func (NopHooks) TagBumpError(string, error)  {}
