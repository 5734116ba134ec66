// Package assignment contains the Assignment aggregate linking one order to
// one driver for a single dispatch round, together with its State variant.
//
// An assignment starts as an Offered, time-bounded offer and resolves to one
// of Accepted, Rejected, Expired or Cancelled; an Accepted assignment later
// resolves to Completed or Cancelled. Offer expiry is driven by a recurring
// sweep over open offers whose deadline has passed, never by a blocked wait.
//
// The aggregate carries an optimistic-concurrency version that increments
// exactly once per accepted mutation. Races such as a driver accepting while
// the order is being cancelled are resolved by conditional writes on that
// version at the persistence layer.
package assignment
