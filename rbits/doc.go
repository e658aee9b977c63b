// Package rbits packs event records into compact bit sequences.
//
// A Schema is an ordered list of fields, each with a bit width and a kind
// (unsigned, signed, boolean or fixed-point). Records are encoded by
// concatenating their fields in schema order, most significant bit first,
// without any padding between fields. Only the end of a block is zero padded
// to the next byte boundary:
//
//	schema: flag:1:bool,value:7:uint
//	record: {flag: true, value: 42}
//	block:  1 0101010 = 0xAA
//
// Signed and fixed-point fields use two's complement. A fixed-point field with
// Frac fractional bits stores round(v * 2^Frac).
//
// The layout is bit-exact and deterministic: encoding the same record with
// the same schema always yields the same bytes, which is what makes a
// recorded stream replayable in another process.
//
// Blocks that cross a process or storage boundary are wrapped in frames
// which add a crc32 checksum and a trailer, see WriteFrame.
package rbits
