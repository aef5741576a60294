// Package postAuth provides a two-phase multi-factor authentication engine:
// password then SMS one-time code, with single-use recovery codes, lockout
// after repeated failures, signed session tokens, and admin-only TOTP.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// postAuth is the public surface. It exposes [Engine], [Builder], [Config], the
// error sentinels, and value types (VerifyResult, Profile, TOTPSetup, etc.).
// Persistence lives behind [store.Store], SMS delivery behind [sms.Gateway],
// and the HTTP surface in package httpapi.
//
// # What this package must NOT do
//
//   - Distinguish unknown users, wrong passwords, and locked accounts to callers.
//   - Persist plaintext passwords or plaintext recovery codes.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Read account state for a decision and write it back in separate steps;
//     every read-modify-write goes through [store.Store.Update].
package postAuth
