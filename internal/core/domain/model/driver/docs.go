// Package driver implements the Driver aggregate: identity, vehicle class,
// dispatch availability, and the last-known position snapshot.
//
// Availability changes are version-guarded so offer creation, offer
// acceptance, and offline transitions racing on the same driver resolve
// through conditional writes instead of locks. Position reports are the hot
// path and deliberately bypass the version counter: concurrent reports
// resolve through last-writer-wins on the report timestamp, and stale
// reports are dropped silently.
package driver
