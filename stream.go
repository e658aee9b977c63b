package repyable

import (
	"context"
	"io"

	"github.com/luno/jettison/errors"

	"github.com/luno/repyable/rbuffer"
)

// Stream implements StreamFunc over the session buffer. It streams the
// events after the cursor, blocking at the live end until the session is
// closed, after which it returns ErrEndOfStream. Streams may be started
// after Close to replay the buffer.
func (s *Session) Stream(ctx context.Context, after string, opts ...StreamOption) (StreamClient, error) {
	from, err := ParseCursor(after)
	if err != nil {
		return nil, errors.Wrap(err, "invalid cursor")
	}

	o := resolveOptions(opts)
	if o.StreamFromHead {
		from = s.buf.Len()
	}

	var iterOpts []rbuffer.IterOption
	if !o.StreamToHead {
		iterOpts = append(iterOpts, rbuffer.WithFollow())
	}

	return &streamClient{
		ctx:  ctx,
		sess: s,
		it:   s.buf.Iterate(from, iterOpts...),
	}, nil
}

type streamClient struct {
	ctx  context.Context
	sess *Session
	it   *rbuffer.Iterator
}

func (c *streamClient) Recv() (*Event, error) {
	index, block, err := c.it.Next(c.ctx)
	if errors.Is(err, rbuffer.ErrSealed) {
		return nil, ErrEndOfStream
	} else if errors.Is(err, io.EOF) {
		return nil, ErrHeadReached
	} else if err != nil {
		return nil, err
	}

	return c.sess.decode(index, block)
}

func (c *streamClient) Close() error {
	c.it.Close()
	return nil
}
