package rbits

// bitWriter appends values most significant bit first.
type bitWriter struct {
	buf []byte
	n   int // bits written
}

// write appends the low width bits of v. Bits above width must be zero.
func (w *bitWriter) write(v uint64, width int) {
	for width > 0 {
		if w.n%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		free := 8 - w.n%8
		take := min(free, width)

		chunk := byte((v >> (width - take)) & (1<<take - 1))
		w.buf[len(w.buf)-1] |= chunk << (free - take)

		width -= take
		w.n += take
	}
}

// bitReader consumes values most significant bit first.
type bitReader struct {
	buf []byte
	n   int // bits read
}

func (r *bitReader) remaining() int {
	return len(r.buf)*8 - r.n
}

// read returns the next width bits. The caller ensures enough bits remain.
func (r *bitReader) read(width int) uint64 {
	var v uint64
	for width > 0 {
		off := r.n % 8
		avail := 8 - off
		take := min(avail, width)

		chunk := (r.buf[r.n/8] >> (avail - take)) & byte(1<<take-1)
		v = v<<take | uint64(chunk)

		width -= take
		r.n += take
	}
	return v
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return 1<<width - 1
}

func signExtend(v uint64, width int) int64 {
	if width < 64 && v&(1<<(width-1)) != 0 {
		v |= ^mask(width)
	}
	return int64(v)
}
