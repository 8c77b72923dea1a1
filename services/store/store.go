package store

import (
	"aviron/pricewatch/internal/watch"
)

// Store is the durable mapping from item name to its last-known price.
// Implementations are single-writer: the run loop must not be invoked
// concurrently against the same store.
type Store interface {
	// Get retrieves the record for an item; the bool reports presence
	Get(itemName string) (watch.PriceRecord, bool, error)

	// Put upserts a record and durably commits it before returning
	Put(record watch.PriceRecord) error
}
