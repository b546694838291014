// Package internal contains helpers that are private to the hyphae module.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - cli: the cobra command tree behind cmd/hyphae
//   - flows: pure-function orchestrators for login, PIN verification and restore
//   - pinhash: Argon2id hashing for the local-mode PIN
//   - rate: Redis-backed second-factor attempt limiter
//
// # What this package must NOT do
//
//   - Export types that appear in the public hyphae API.
//   - Be imported by any package outside the hyphae module.
package internal
