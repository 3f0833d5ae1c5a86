package driven

// ConfigStore provides persistent key-value configuration.
// Keys use dotted paths, e.g. "embedding.provider" or "pipeline.workers".
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	Get(key string) (any, bool)

	// GetString retrieves a string value, empty when unset.
	GetString(key string) string

	// GetInt retrieves an integer value, zero when unset.
	GetInt(key string) int

	// Set stores a configuration value.
	Set(key string, value any)

	// Save persists the configuration.
	Save() error

	// Load reads the configuration from its backing store.
	Load() error
}
