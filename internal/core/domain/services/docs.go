// Package services provides domain services that orchestrate business rules
// spanning more than one aggregate.
//
// The package includes:
//   - DispatchPlanner: computes search radii, offer deadlines, retry backoff
//     and delivery estimates for the dispatch coordinator
//
// Domain services hold logic that does not naturally belong to a single
// aggregate root, following Domain-Driven Design principles.
package services
