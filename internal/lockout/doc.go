// Package lockout implements the per-account Open/Locked policy.
//
// The policy is pure: it mutates a State in memory and never talks to
// storage. Callers apply it inside the credential store's atomic
// read-modify-write so increment-then-lock is never split across writers.
package lockout
