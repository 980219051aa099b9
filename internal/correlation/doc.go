// Package correlation hands (branch, repository, commit) records from branch
// events to the pipeline executions that later consume them.
//
// The hand-off is an ordered, deduplicated queue: records sharing a group id
// are delivered in enqueue order, a repeated dedup id inside the dedup window
// is dropped, and a received record that is not acknowledged becomes visible
// again after the visibility timeout. Delivery is therefore at-least-once;
// Deduplicating adds a consumer-side ledger so each consumer processes a
// given message at most once.
package correlation
