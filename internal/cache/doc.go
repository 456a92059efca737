// Package cache provides a small generic TTL cache.
//
// Entries expire a fixed duration after their last write and the cache holds
// at most maxSize entries, evicting the oldest write first. A background
// goroutine sweeps expired entries once a minute until Close is called.
package cache
