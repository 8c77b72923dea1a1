package publisher

// Publisher represents a sink for outcome events, consumed by downstream
// services outside this process. Optional: the run loop works without one.
type Publisher interface {
	// Publish publishes an event to a stream
	Publish(key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}
