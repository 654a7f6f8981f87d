// Package sanitizer normalizes user-supplied values before validation and
// storage.
//
// All functions are idempotent. Invalid input yields an empty string
// rather than an error so callers can decide how to report it.
package sanitizer
