// Package users defines the user record written by billing webhooks and the
// storage port that persists it.
//
// Records are keyed by email and are only ever merge-written: an Update
// carries the fields an event sets, and every Storage implementation leaves
// the remaining fields untouched.
package users
