// Package store persists account records for the authentication core.
//
// One record per account holds every piece of durable auth state: the
// password hash, the pending SMS code, recovery code hashes, the TOTP secret,
// lockout counters and the role. All mutation goes through [Store.Update],
// an atomic read-modify-write scoped to a single username. Implementations
// serialise concurrent updates of the same account:
//
//   - [MemoryStore] with a per-account mutex
//   - [RedisStore] with WATCH/MULTI optimistic transactions
//   - [MongoStore] with a version compare-and-swap
//
// Relationships between records (accounts reference a role) are declared by
// a [Schema] and registered once at startup with [Store.Migrate].
package store
