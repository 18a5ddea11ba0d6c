package providers

// Registry maps provider identifiers from the catalog to adapter
// implementations. It replaces vendor-name branching with a lookup table;
// several identifiers may share one adapter (e.g. "google" and
// "google-vertex" both dispatch through the Gemini adapter).
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register binds a provider identifier to an adapter
func (r *Registry) Register(provider string, a Adapter) {
	r.adapters[provider] = a
}

// Get returns the adapter for a provider identifier
func (r *Registry) Get(provider string) (Adapter, bool) {
	a, ok := r.adapters[provider]
	return a, ok
}

// Providers returns the registered provider identifiers
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
