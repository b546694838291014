// Package audit relays session lifecycle events (login, PIN verification,
// restore, logout) to a caller-supplied sink without blocking the caller.
//
// The [Dispatcher] owns buffering only. Which events exist and when they are
// emitted is decided by the Engine.
//
// This package must not import hyphae or any sibling internal package.
package audit
