// Package rate provides the Redis-backed fixed-window counters behind the
// per-client-IP throttle on login and verification.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys are
// <prefix>:rl:<scope>:<ip>, with scope "login" or "verify".
//
// # What this package must NOT do
//
//   - Decide what counts as a failure (the engine records hits).
//   - Key anything by username; per-account limits belong to the lockout policy.
package rate
