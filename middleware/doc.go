// Package middleware exposes HTTP guards built on top of postAuth.Engine
// session checks.
//
// # Guards
//
//   - [RequireSession] rejects requests without a valid session token.
//   - [RequireAdmin] additionally requires the account's stored role to be admin.
//
// Each guard reads the session cookie (falling back to a Bearer Authorization
// header), delegates the decision to the Engine, and injects the validated
// identity and token into the request context.
//
// # What this package must NOT do
//
//   - Parse or create session tokens directly (delegates to Engine).
//   - Trust a role carried by the client; admin checks always go to the Engine.
package middleware
