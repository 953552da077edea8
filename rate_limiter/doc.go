// Package rate_limiter provides distributed rate limiting backed by a shared
// Redis store.
//
// Both algorithms, TokenBucket and FixedWindow, make their whole decision
// inside a server-side Lua script: one atomic read-modify-write per request,
// timed by the store's own clock. Any number of processes can therefore
// limit the same keys through their own limiter instances without client-side
// locks, caches or clock synchronization. The library keeps no state between
// calls; everything lives in the store under per-key TTLs.
package rate_limiter
