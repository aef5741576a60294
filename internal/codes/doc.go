// Package codes generates SMS one-time codes and single-use recovery codes
// and derives the hashes under which recovery codes are stored.
package codes
