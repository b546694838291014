// Package rate provides the Redis-backed fixed-window limiter guarding the
// second-factor (PIN) step.
//
// # Window semantics
//
// Fixed-window counters: INCR + EXPIRE on first hit. Keys are
// <prefix>:pin:<deviceID>. The budget belongs to the device, not to the login,
// so signing in again does not restore it. A successful verification deletes
// the key.
//
// # What this package must NOT do
//
//   - Decide whether a PIN is correct.
//   - Be imported outside the hyphae module.
package rate
