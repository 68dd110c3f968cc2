package types

// ContextKey defines a type for context keys to avoid string collision
type ContextKey string

const (
	// RequestIDContextKey is the context key for request ID
	RequestIDContextKey ContextKey = "RequestID"
	// LoggerContextKey is the context key for logger
	LoggerContextKey ContextKey = "Logger"
	// SourceScopeContextKey is the context key for the active source_config_ids
	SourceScopeContextKey ContextKey = "SourceScope"
)

// String returns the string representation of the context key
func (c ContextKey) String() string {
	return string(c)
}

// CleanupFunc is a registered shutdown action run by a ResourceCleaner.
type CleanupFunc func() error
