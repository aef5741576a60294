// Package totp wraps RFC 6238 time-based one-time passwords for admin
// second-factor enrolment and verification.
//
// Verification runs with zero clock drift by default: a token is accepted
// only for the exact 30-second step containing the verification instant.
// Tokens for the previous or next step are rejected even though they were
// correct moments earlier. Callers that want the usual one-step tolerance
// must opt in with a non-zero Config.Skew.
package totp
