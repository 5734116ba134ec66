// Package geoindex provides an in-process concurrent geospatial index of
// driver positions, keyed by quantized lat/lon grid cells.
//
// The index is a read-optimized shadow of driver storage, not a source of
// truth: command handlers update it after a successful mutation commits, and
// the dispatch sweep queries it to gather nearby available drivers without a
// storage round trip. Position updates are last-writer-wins by report
// timestamp, so out-of-order reports from a flaky connection are dropped
// silently rather than moving a driver backwards.
//
// Nearest queries filter by radius before ranking, order by ascending
// haversine distance with driver-id tiebreaks, and bound candidate gathering
// to the grid cells the radius covers.
package geoindex
