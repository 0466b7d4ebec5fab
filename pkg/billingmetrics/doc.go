// Package billingmetrics derives operational billing figures from
// subscription and payment records: tenant counts by status, recurring
// revenue per currency, trials about to expire and recent payment failures.
//
// Compute is a pure function over a record set. Aggregator feeds it from a
// subscription.Service and Collector publishes the latest snapshot as
// Prometheus gauges.
package billingmetrics
