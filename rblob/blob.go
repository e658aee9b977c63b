package rblob

import (
	"context"
	"io"
	"iter"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"
	"gocloud.dev/blob"

	"github.com/luno/repyable/rbits"
	"github.com/luno/repyable/rbuffer"
)

// ErrSchemaMismatch is returned when restoring a snapshot written with a
// different schema.
var ErrSchemaMismatch = errors.New("snapshot schema mismatch", j.C("ERR_b1d94e07c3a2f568"))

const contentType = "application/x-repyable-frames"

// Appender is satisfied by *rbuffer.Buffer.
type Appender interface {
	Append(block rbits.Block) (int64, error)
}

// Option is a functional option that configures a bucket.
type Option func(*Bucket)

// WithContentType overrides the content type of written snapshots.
func WithContentType(ct string) Option {
	return func(b *Bucket) {
		b.contentType = ct
	}
}

// OpenBucket opens and returns a bucket for the provided url.
//
// label defines the bucket label used for metrics.
//
// urlstr defines the url of the blob bucket. See the gocloud
// URLOpener documentation in driver subpackages for details
// on supported URL formats. Also see https://gocloud.dev/concepts/urls/
// and https://gocloud.dev/howto/blob/.
func OpenBucket(ctx context.Context, label, urlstr string,
	opts ...Option,
) (*Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, err
	}

	return NewBucket(label, bucket, opts...), nil
}

// NewBucket returns a bucket using the provided underlying bucket.
func NewBucket(label string, bucket *blob.Bucket, opts ...Option) *Bucket {
	b := &Bucket{
		label:       label,
		bucket:      bucket,
		contentType: contentType,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Bucket stores buffer snapshots as blobs.
type Bucket struct {
	label       string
	bucket      *blob.Bucket
	contentType string
}

// Close releases any resources used by the underlying bucket.
func (b *Bucket) Close() error {
	return b.bucket.Close()
}

// Snapshot writes the schema and every block currently in the buffer to
// the blob at key and returns the number of blocks written. Blocks
// appended concurrently may or may not be included.
func (b *Bucket) Snapshot(ctx context.Context, key string, schema rbits.Schema,
	buf *rbuffer.Buffer,
) (int, error) {
	return b.snapshot(ctx, key, schema, buf.All(0))
}

// snapshot writes the blocks as a snapshot at key. On error the write is
// aborted and nothing is stored at key.
func (b *Bucket) snapshot(ctx context.Context, key string, schema rbits.Schema,
	blocks iter.Seq2[int64, rbits.Block],
) (int, error) {
	// Cancelling the writer context before Close aborts the write.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := b.bucket.NewWriter(wctx, key, &blob.WriterOptions{
		ContentType: b.contentType,
	})
	if err != nil {
		return 0, errors.Wrap(err, "new writer", j.KS("key", key))
	}

	n, err := writeFrames(w, schema, blocks)
	if err != nil {
		cancel()
		_ = w.Close()
		snapshotsTotal.WithLabelValues(b.label, resultAborted).Inc()
		return 0, errors.Wrap(err, "snapshot aborted", j.KS("key", key))
	}

	if err := w.Close(); err != nil {
		snapshotsTotal.WithLabelValues(b.label, resultAborted).Inc()
		return 0, errors.Wrap(err, "close writer", j.KS("key", key))
	}

	snapshotsTotal.WithLabelValues(b.label, resultWritten).Inc()
	blocksTotal.WithLabelValues(b.label, opSnapshot).Add(float64(n))
	log.Info(ctx, "snapshot written", j.MKV{"key": key, "blocks": n})

	return n, nil
}

func writeFrames(w io.Writer, schema rbits.Schema, blocks iter.Seq2[int64, rbits.Block]) (int, error) {
	if err := rbits.WriteFrame(w, rbits.FrameSchema, []byte(schema.String())); err != nil {
		return 0, errors.Wrap(err, "write schema")
	}

	var n int
	for i, block := range blocks {
		if err := rbits.WriteFrame(w, rbits.FrameBlock, block); err != nil {
			return 0, errors.Wrap(err, "write block", j.KV("index", i))
		}
		n++
	}
	return n, nil
}

// Restore appends the blocks of the snapshot at key to the appender and
// returns the number appended. It returns ErrSchemaMismatch if the
// snapshot was written with a different schema.
func (b *Bucket) Restore(ctx context.Context, key string, schema rbits.Schema,
	a Appender,
) (int, error) {
	r, err := b.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return 0, errors.Wrap(err, "new reader", j.KS("key", key))
	}
	defer r.Close()

	restoresTotal.WithLabelValues(b.label).Inc()
	restored := blocksTotal.WithLabelValues(b.label, opRestore)

	fr := rbits.NewFrameReader(r)

	kind, payload, err := fr.Next()
	if errors.Is(err, io.EOF) {
		return 0, errors.Wrap(rbits.ErrTruncatedBlock, "empty snapshot", j.KS("key", key))
	} else if err != nil {
		return 0, errors.Wrap(err, "read schema", j.KS("key", key))
	} else if kind != rbits.FrameSchema {
		return 0, errors.Wrap(ErrSchemaMismatch, "missing schema frame", j.KS("key", key))
	}

	stored, err := rbits.ParseSchema(string(payload))
	if err != nil {
		return 0, errors.Wrap(err, "parse schema", j.KS("key", key))
	} else if !stored.Equal(schema) {
		return 0, errors.Wrap(ErrSchemaMismatch, "", j.MKS{
			"key":      key,
			"snapshot": stored.String(),
			"expected": schema.String(),
		})
	}

	var n int
	for {
		kind, payload, err := fr.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		} else if err != nil {
			return n, errors.Wrap(err, "read block", j.KS("key", key))
		} else if kind != rbits.FrameBlock {
			return n, errors.Wrap(rbits.ErrTruncatedBlock, "unexpected frame",
				j.MKV{"key": key, "kind": kind})
		}

		if _, err := a.Append(payload); err != nil {
			return n, err
		}
		restored.Inc()
		n++
	}
}

// RestoreAll restores every snapshot under prefix in key order and returns
// the total number of blocks appended.
func (b *Bucket) RestoreAll(ctx context.Context, prefix string, schema rbits.Schema,
	a Appender,
) (int, error) {
	keys, err := b.Keys(ctx, prefix, "")
	if err != nil {
		return 0, err
	}

	var total int
	for _, key := range keys {
		n, err := b.Restore(ctx, key, schema, a)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Keys returns the snapshot keys under prefix that sort after the provided
// key, in order.
func (b *Bucket) Keys(ctx context.Context, prefix, after string) ([]string, error) {
	opts := &blob.ListOptions{Prefix: prefix}
	if after != "" {
		opts.BeforeList = makeStartAfter(after)
	}

	iter := b.bucket.List(opts)

	var keys []string
	for {
		o, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			return keys, nil
		} else if err != nil {
			return nil, errors.Wrap(err, "list iter")
		}

		if o.IsDir {
			continue
		}

		if o.Key <= after {
			listSkipTotal.WithLabelValues(b.label).Inc()
			continue
		}

		keys = append(keys, o.Key)
	}
}

// makeStartAfter returns a blob.BeforeList function that starts listing after
// the provided key for improved performance when scanning large s3 buckets.
// Other drivers list from the start of the prefix.
func makeStartAfter(key string) func(func(interface{}) bool) error {
	return func(asFunc func(interface{}) bool) error {
		s3input := new(s3.ListObjectsV2Input)
		if !asFunc(&s3input) {
			return nil
		}
		if s3input.Prefix != nil && !strings.HasPrefix(key, *s3input.Prefix) {
			// Prefixed bucket, keys are relative to the bucket prefix.
			return nil
		}
		s3input.StartAfter = &key
		return nil
	}
}
