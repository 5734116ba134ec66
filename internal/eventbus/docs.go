// Package eventbus fans committed mutation events out to in-process
// subscribers and retains a bounded window for incremental replay.
//
// The bus sits downstream of durability: events are appended and sequenced
// by the event repository inside the mutation's own transaction, and command
// handlers notify the bus after commit. Because concurrent handlers can
// notify out of order, the bus appends strictly in sequence: a notification
// ahead of the expected next sequence waits in a pending buffer until the
// hole below it is filled, from the durable log or by the missing
// notification itself, keeping every subscription gap-free.
//
// SubscribeFrom replays retained history strictly after a given sequence and
// then stays live without a gap or duplicate. Replay requests from before
// the retention horizon fail with ErrHistoryTruncated, which tells the
// caller (the session manager) to fall back to a full snapshot. The same
// error cuts off a live subscriber that falls more than the retention window
// behind, bounding memory regardless of consumer speed.
package eventbus
