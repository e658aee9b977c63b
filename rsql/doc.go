// Package rsql provides a MySQL backed repyable.CursorStore.
//
// Cursors are stored as event indexes in a table keyed by consumer name
// and only ever move forward.
package rsql
