// Package internaldefs holds the metric names, help strings and bucket
// boundaries shared by the Prometheus and OTel exporters, so both expose
// identical series.
//
// This package must not import an exporter package or perform I/O.
package internaldefs
