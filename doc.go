// Package hyphae is the headless client core of the HyphaeOS dashboard: it owns
// the session, verifies primary and second-factor credentials, and restores a
// session silently at startup.
//
// The package is built for a single interactive client. Engine methods are safe
// to call from multiple goroutines after [Builder.Build]; overlapping logins are
// resolved in favor of the most recently started attempt.
//
// # Architecture boundaries
//
// hyphae exposes [Engine], [Builder], [Config] and value types. The session
// store lives in the session package and is handed out read-only through
// [Engine.Sessions]. Flow orchestration, the PIN attempt limiter and audit
// dispatch live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Render anything or decide which view is shown. That is the gate package.
//   - Surface raw transport errors to end users. Use [UserMessage].
//   - Let any component other than [Engine] write the session store.
package hyphae
