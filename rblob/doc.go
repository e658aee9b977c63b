// Package rblob leverages the gocloud.dev/blob package to snapshot and
// restore the contents of a repyable buffer to and from a bucket.
//
// A snapshot is a single blob of frames: one schema frame followed by one
// block frame per buffered event, in index order. Snapshots are immutable,
// name them so that they sort in the order they were written (ex. by
// timestamp) if they are replayed with RestoreAll.
package rblob
