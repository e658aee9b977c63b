package rpatterns

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/luno/repyable"
)

type parallelConfig struct {
	n            int
	name         string
	streamOpts   []repyable.StreamOption
	consumerOpts []repyable.ConsumerOption

	hashField string
	nameFn    func(base string, m, n int) string
}

type ParallelOption func(pc *parallelConfig)
type getCtxFn = func(consumerName string) context.Context
type handleFn = func(context.Context, *repyable.Event) error

// ConsumerShard is consumer m-of-n of a parallel consumer group.
type ConsumerShard struct {
	Name   string
	filter func(*repyable.Event) (bool, error)
}

// Parallel starts N consumers which consume the stream in parallel. Each event
// is consistently hashed to a consumer by its index, or by the value of a
// record field if WithHashField is provided.
// Role scheduling combined with an appropriate getCtxFn can be used to
// implement distributed parallel consuming.
//
// NOTE: N should preferably be a power of 2, and modifying N will reset the
// cursors.
func Parallel(getCtx getCtxFn, name string, n int, stream repyable.StreamFunc,
	cstore repyable.CursorStore, handle handleFn, opts ...ParallelOption,
) {
	conf := resolve(name, n, opts)

	for _, shard := range conf.shards() {
		consumer := shard.consumer(handle, conf.consumerOpts...)
		gcf := func() context.Context {
			return getCtx(consumer.Name())
		}

		spec := repyable.NewSpec(stream, cstore, consumer, conf.streamOpts...)
		go RunForever(gcf, spec)
	}
}

// ConsumerShards returns the n shards of a parallel consumer group. Every
// event is accepted by exactly one shard.
func ConsumerShards(name string, n int, opts ...ParallelOption) []ConsumerShard {
	conf := resolve(name, n, opts)
	return conf.shards()
}

func resolve(name string, n int, opts []ParallelOption) parallelConfig {
	conf := parallelConfig{
		n:    n,
		name: name,
		nameFn: func(base string, m, n int) string {
			return fmt.Sprintf("%s_%d_of_%d", base, m+1, n)
		},
	}
	for _, o := range opts {
		o(&conf)
	}
	return conf
}

func (pc *parallelConfig) shards() []ConsumerShard {
	res := make([]ConsumerShard, 0, pc.n)
	for m := 0; m < pc.n; m++ {
		res = append(res, ConsumerShard{
			Name:   pc.nameFn(pc.name, m, pc.n),
			filter: pc.makeFilter(m),
		})
	}
	return res
}

// makeFilter returns a filter for consumer m-of-n that only accepts events
// that hash to it.
func (pc *parallelConfig) makeFilter(m int) func(*repyable.Event) (bool, error) {
	return func(event *repyable.Event) (bool, error) {
		var hashKey []byte
		if v, ok := event.Record[pc.hashField]; ok && pc.hashField != "" {
			hashKey = []byte(v.String())
		} else {
			hashKey = []byte(strconv.FormatInt(event.Index, 10))
		}

		hasher := fnv.New32()
		if _, err := hasher.Write(hashKey); err != nil {
			return false, err
		}

		return hasher.Sum32()%uint32(pc.n) == uint32(m), nil
	}
}

func (s ConsumerShard) consumer(handle handleFn, opts ...repyable.ConsumerOption) repyable.Consumer {
	f := func(ctx context.Context, event *repyable.Event) error {
		ok, err := s.filter(event)
		if err != nil {
			return err
		} else if !ok {
			return nil
		}
		return handle(ctx, event)
	}
	return repyable.NewConsumer(s.Name, f, opts...)
}

func WithStreamOpts(opts ...repyable.StreamOption) ParallelOption {
	return func(pc *parallelConfig) {
		pc.streamOpts = append(pc.streamOpts, opts...)
	}
}

func WithConsumerOpts(opts ...repyable.ConsumerOption) ParallelOption {
	return func(pc *parallelConfig) {
		pc.consumerOpts = append(pc.consumerOpts, opts...)
	}
}

// WithHashField hashes events by the value of the record field instead of
// the event index. Events with equal field values are processed in order
// by the same consumer.
func WithHashField(name string) ParallelOption {
	return func(pc *parallelConfig) {
		pc.hashField = name
	}
}

// WithNameFormatter overrides the default "<name>_<m>_of_<n>" consumer names.
func WithNameFormatter(fn func(base string, m, n int) string) ParallelOption {
	return func(pc *parallelConfig) {
		pc.nameFn = fn
	}
}
