// Package events defines the dispatch lifecycle events emitted on the event
// bus.
//
// Available event kinds:
//   - KindCreated: a dispatch was stored with a fresh id
//   - KindUpdated: a stored dispatch changed
//   - KindDeleted: a dispatch was removed
package events
