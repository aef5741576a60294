// Package password hashes and verifies account passwords with peppered Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The candidate password is first keyed with a server-wide pepper
// (HMAC-SHA256) and the resulting digest is fed to Argon2id. The pepper is
// never written into the encoded hash, so a leaked credential table cannot be
// attacked offline without it.
//
// # Equal effort
//
// [Argon2.Check] always performs exactly one Argon2id derivation. When the
// caller has no stored hash (unknown account) it derives against a dummy hash
// produced at construction time with the same parameters and reports false.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Enforce password policy. Strength rules belong to registration.
//   - Log plaintext passwords or peppers.
package password
