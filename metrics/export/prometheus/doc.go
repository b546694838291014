// Package prometheus renders hyphae engine and feed metrics in the Prometheus
// text exposition format without depending on the Prometheus client library.
package prometheus
