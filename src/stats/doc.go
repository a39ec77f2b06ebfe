// Package stats keeps the rolling counters of a node: elements received,
// out-of-time and rejected elements, deliveries and the maximum observed
// network latency. Counters cover two consecutive periods and are exported to
// prometheus.
package stats
