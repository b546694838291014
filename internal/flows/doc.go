// Package flows contains pure-function orchestrators for the Engine's session
// operations: login, second-factor verification and silent restore.
//
// Each Run* function takes a typed dependency struct and performs I/O only
// through it. The Engine owns the store, the backend and the generation
// counter; flows decide ordering, failure classification, metrics and audit.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import hyphae (to avoid import cycles).
//   - Write to the session store directly. Every write goes through a Commit
//     dependency so the Engine can discard stale completions.
package flows
