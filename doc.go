// Package repyable records, compactly serializes and replays streams of
// discrete events between goroutines and processes.
//
// Events are records of a fixed Schema, bit-packed by package rbits into
// blocks with no padding between fields:
//
//	flag:1:bool,value:7:uint   {flag:true, value:42}  =>  0xAA
//
// A Session owns one append-only buffer (package rbuffer) and one bounded
// queue (package rqueue). Produce encodes a record, appends it to the buffer,
// which assigns its stable index, and pushes an envelope of the index, the
// producer's trace and the block onto the queue.
//
// Events are consumed in one of two ways:
//  1. Work-queue: Pop removes the next envelope from the queue. Each event
//     is delivered to exactly one popper, in push order.
//  2. Replay: every consumer keeps its own cursor over the buffer and sees
//     every event in index order. Use RegisterConsumer with ConsumeNext, or
//     Run with a CursorStore to resume a named consumer after restarts.
//
// Close seals the buffer and closes the queue. Queued events are still
// popped and replay consumers drain the buffer before receiving
// ErrEndOfStream.
//
// Package rgrpc exposes a session to other processes, package rblob
// snapshots a buffer to blob storage and package rsql stores consumer
// cursors in MySQL.
package repyable
