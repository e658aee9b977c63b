package rbuffer

import (
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

var (
	// ErrIndexOutOfRange is returned by Get for an index outside [0, Len).
	ErrIndexOutOfRange = errors.New("buffer index out of range", j.C("ERR_8e1d4b7a2c03f956"))

	// ErrBufferInUse is returned by Reset while iterators are live.
	ErrBufferInUse = errors.New("buffer in use by live iterators", j.C("ERR_d25c9f13e7a40b68"))

	// ErrSealed is returned by Append after Seal and by live iterators
	// that reached the end of a sealed buffer.
	ErrSealed = errors.New("buffer sealed", j.C("ERR_17f0a6e3b59dc284"))

	ErrIteratorClosed = errors.New("iterator closed", j.C("ERR_c6b3e08d1f2a9574"))
)
