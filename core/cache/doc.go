// Package cache provides the keyed value cache of the event-sourced stores.
//
// [Sorted] is a concurrency-safe map that keeps its keys in a caller-defined
// order, so iteration over the cache is reproducible:
//
//	c := cache.NewSorted[es.Identifier, Config](es.Identifier.Compare)
//	c.Put(id, cfg)
//	for _, id := range c.Keys() {
//	    // ordered by identifier
//	}
package cache
