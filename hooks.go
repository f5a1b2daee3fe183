package snapcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// A read was served by layer.
	Hit(category string, layer Layer)

	// Neither layer had a fresh entry.
	Miss(category string)

	// An expired entry was found and deleted from layer.
	Expired(storageKey string, layer Layer)

	// An entry was deleted on read because it could not be used.
	// reason ∈ {"corrupt", "value_decode"}
	SelfHeal(storageKey string, layer Layer, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string, layer Layer)

	// A provider call failed; the cache degraded to a miss or skipped the write.
	// op ∈ {"get", "set", "del", "keys", "purge"}
	LayerError(op, storageKey string, layer Layer, err error)

	// Network-first fell back to a cached value after fetchErr.
	StaleServed(storageKey string, fetchErr error)

	// A stale-while-revalidate background refresh failed.
	RevalidateFailed(storageKey string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string, Layer)                       {}
func (NopHooks) Miss(string)                             {}
func (NopHooks) Expired(string, Layer)                   {}
func (NopHooks) SelfHeal(string, Layer, string)          {}
func (NopHooks) ProviderSetRejected(string, Layer)       {}
func (NopHooks) LayerError(string, string, Layer, error) {}
func (NopHooks) StaleServed(string, error)               {}
func (NopHooks) RevalidateFailed(string, error)          {}
