package rsql

import (
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

var (
	// ErrInvalidCursor occurs when a cursor is not a non-negative event index.
	ErrInvalidCursor = errors.New("invalid cursor, only event indexes supported", j.C("ERR_82d0368b5478d378"))
	// ErrStaleCursor occurs when setting a cursor lower than the stored cursor.
	ErrStaleCursor = errors.New("cursor lower than existing cursor", j.C("ERR_bc3dcacb92b9761f"))
)
