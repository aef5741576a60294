// Package jwt mints and validates the signed session token carried in the
// session cookie.
//
// The token identifies the account by username only. Role and other
// privileges are never encoded and must be re-read from the credential store
// on every privileged check.
package jwt
