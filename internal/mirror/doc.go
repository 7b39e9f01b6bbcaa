// Package mirror drives incremental synchronization of one group's message
// history into a store.
//
// # Direction
//
// A run starts by asking the store for the newest stored message:
//
//   - none: page Backward from the newest upstream message (no cursor on the
//     first request), saving all history
//   - some ID N: page Forward with after_id=N, catching up on newer messages
//
// After each page the cursor is recomputed from the store (max ID going
// forward, min ID going backward). An empty page ends the run.
//
// Backfill pages backward from the oldest stored message. It completes the
// history of a first run that was interrupted part way.
//
// # Records
//
// Each record is written in its own transaction: the message row, then one or
// more rows per attachment. A record whose ID is already stored is skipped
// without looking at its attachments. Attachments with unknown tags are
// logged at warn level with the full record and otherwise ignored.
//
// # Failure
//
// Any fetch or write error ends the run and is returned. Nothing committed is
// lost, and the next run resumes from whatever the store holds.
package mirror
