// Package order implements the Order aggregate and its lifecycle state machine.
//
// The Order aggregate owns every status change an order can undergo:
//
//	Pending ──> Preparing ──> OutForDelivery ──> Delivered
//	   │            │
//	   └────────────┴──> Cancelled
//
// Delivered and Cancelled are terminal. Every accepted mutation increments
// the aggregate's version counter exactly once; repositories use that counter
// for conditional writes, so concurrent writers race on the version rather
// than on locks. Callers that lose the race receive a concurrency conflict
// and must re-read the order before retrying.
package order
