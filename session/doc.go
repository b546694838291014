// Package session owns the in-process session state of a HyphaeOS client and the
// persisted device credential used to restore it at startup.
//
// # Architecture boundaries
//
// This package owns the [Store] (the single shared mutable value), the [Session] and
// [Identity] models, and the [CredentialStore] implementations. It does NOT decide
// whether credentials are acceptable or which UI region may render; those decisions
// belong to the root Engine and the gate package.
//
// # What this package must NOT do
//
//   - Import the root package, api, or gate (no upward imports).
//   - Parse or inspect [Session.Token]; the token is an opaque bearer value.
//   - Persist plaintext credentials when a sealing key is configured.
package session
