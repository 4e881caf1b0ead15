package client

// ModelResolver supplies the façade's default and fallback model
// identifiers (spec.md §4.14: "a model resolver that supplies
// default/canonical model identifiers").
type ModelResolver interface {
	// DefaultModelID is substituted for a request's Model field when it
	// is empty or one of the recognised sentinels (canonical.ModelIsDefaultSentinel).
	DefaultModelID() string

	// FallbackModelID returns the one-shot replacement for a model id
	// that failed with ModelNotFound, and whether a fallback exists.
	FallbackModelID(failedModelID string) (string, bool)
}

// StaticResolver is a fixed default plus a static fallback table,
// sufficient for manifests where model substitution doesn't depend on
// runtime state.
type StaticResolver struct {
	Default   string
	Fallbacks map[string]string
}

func (r StaticResolver) DefaultModelID() string { return r.Default }

func (r StaticResolver) FallbackModelID(failedModelID string) (string, bool) {
	id, ok := r.Fallbacks[failedModelID]
	return id, ok
}
