// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection pool churn (opened, closed, failed) and live size
//   - Frames received and frames that failed to decode
//   - LISTEN / UNLISTEN outcomes
//   - Pong timeouts
//   - Actions dispatched per category and archive writes
package metrics
