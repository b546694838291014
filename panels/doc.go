// Package panels loads the read-only data behind each dashboard panel.
package panels
