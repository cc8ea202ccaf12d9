// Package prometheus exposes authcore engine counters in the Prometheus text
// format.
//
// Mount [Exporter.Handler] on a scrape route. Counters are named
// authcore_*_total and the Authenticate latency histogram is
// authcore_authenticate_latency_seconds (present only when latency
// histograms are enabled). Nothing is registered globally.
package prometheus
