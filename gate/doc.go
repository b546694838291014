// Package gate maps the current session onto the view a dashboard shell may
// show: the login screen, the PIN screen, or the dashboard with the panels the
// session's role unlocks.
//
// The mapping is a pure function of the session value. [Watch] re-evaluates
// it on every store change and never caches.
package gate
