package repyable

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luno/repyable/internal/metrics"
	"github.com/luno/repyable/internal/tracing"
	"github.com/luno/repyable/rbits"
	"github.com/luno/repyable/rbuffer"
	"github.com/luno/repyable/rqueue"
)

// ConsumerID identifies a replay cursor registered with a session.
type ConsumerID int64

// Session binds one buffer and one queue for the lifetime of a producer.
// It is safe for concurrent use by any number of producers and consumers.
type Session struct {
	id     string
	name   string
	schema rbits.Schema

	buf *rbuffer.Buffer
	q   *rqueue.Queue

	mu        sync.Mutex
	closed    bool
	nextID    ConsumerID
	consumers map[ConsumerID]*cursor

	// inflight tracks Produce calls that passed the open check.
	inflight sync.WaitGroup

	producedCounter prometheus.Counter
	poppedCounter   prometheus.Counter
	bufferGauge     prometheus.Gauge
	queueGauge      prometheus.Gauge
	pushWaitHist    prometheus.Observer
}

// cursor serialises use of a replay iterator.
type cursor struct {
	mu sync.Mutex
	it *rbuffer.Iterator
}

// Open returns a new open session. bufferHint is the expected number of
// events and queueCapacity bounds the number of unpopped events.
func Open(schema rbits.Schema, bufferHint, queueCapacity int, opts ...SessionOption) (*Session, error) {
	if schema.Len() == 0 {
		return nil, errors.Wrap(rbits.ErrInvalidSchema, "empty schema")
	}

	s := &Session{
		id:        uuid.New().String(),
		schema:    schema,
		buf:       rbuffer.New(bufferHint),
		q:         rqueue.New(queueCapacity),
		consumers: make(map[ConsumerID]*cursor),
	}
	s.name = s.id

	for _, o := range opts {
		o(s)
	}

	labels := metrics.SessionLabels(s.name)
	s.producedCounter = metrics.ProducedTotal.With(labels)
	s.poppedCounter = metrics.PoppedTotal.With(labels)
	s.bufferGauge = metrics.BufferLength.With(labels)
	s.queueGauge = metrics.QueueDepth.With(labels)
	s.pushWaitHist = metrics.PushWait.With(labels)

	log.Info(context.Background(), "session opened",
		j.MKV{"session": s.name, "schema": schema.String(), "queue_capacity": s.q.Cap()})

	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Name() string {
	return s.name
}

func (s *Session) Schema() rbits.Schema {
	return s.schema
}

// Buffer returns the session buffer. It remains readable after Close.
func (s *Session) Buffer() *rbuffer.Buffer {
	return s.buf
}

// Len returns the number of events produced.
func (s *Session) Len() int64 {
	return s.buf.Len()
}

// Closed returns true once Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Produce encodes the record, appends it to the buffer and pushes it onto
// the queue, blocking while the queue is full. It returns the assigned index.
//
// If the queue is closed or ctx is done while blocked, the event remains
// in the buffer and its index is returned together with the error.
func (s *Session) Produce(ctx context.Context, rec rbits.Record) (int64, error) {
	block, err := rbits.Encode(s.schema, rec)
	if err != nil {
		return 0, err
	}
	return s.produce(ctx, block)
}

// ProduceBlock is like Produce for a block encoded with the session schema.
// The block is decoded first to validate it.
func (s *Session) ProduceBlock(ctx context.Context, block rbits.Block) (int64, error) {
	if _, err := rbits.Decode(s.schema, block); err != nil {
		return 0, err
	}
	return s.produce(ctx, block)
}

func (s *Session) produce(ctx context.Context, block rbits.Block) (int64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrSessionClosed
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	index, err := s.buf.Append(block)
	if errors.Is(err, rbuffer.ErrSealed) {
		return 0, ErrSessionClosed
	} else if err != nil {
		return 0, err
	}
	s.producedCounter.Inc()
	s.bufferGauge.Set(float64(index + 1))

	e := &Event{Index: index, Block: block, Trace: tracing.FromContext(ctx)}

	env, err := MarshalEvent(e)
	if err != nil {
		return index, err
	}

	t0 := time.Now()
	err = s.q.Push(ctx, env)
	s.pushWaitHist.Observe(time.Since(t0).Seconds())
	s.queueGauge.Set(float64(s.q.Len()))
	if err != nil {
		return index, errors.Wrap(err, "push event", j.KV("index", index))
	}

	return index, nil
}

// Pop removes the next event from the queue, blocking while it is empty.
// Each event is delivered to exactly one caller. Once the session is closed
// and the queue drained it returns rqueue.ErrQueueClosed.
func (s *Session) Pop(ctx context.Context) (*Event, error) {
	env, err := s.q.Pop(ctx)
	if err != nil {
		return nil, err
	}
	s.poppedCounter.Inc()
	s.queueGauge.Set(float64(s.q.Len()))

	e, err := UnmarshalEvent(s.schema, env)
	if err != nil {
		return nil, err
	}
	e.Head = s.buf.Len()

	return e, nil
}

// Get returns the event at index from the buffer.
func (s *Session) Get(index int64) (*Event, error) {
	block, err := s.buf.Get(index)
	if err != nil {
		return nil, err
	}
	return s.decode(index, block)
}

func (s *Session) decode(index int64, block rbits.Block) (*Event, error) {
	rec, err := rbits.Decode(s.schema, block)
	if err != nil {
		return nil, errors.Wrap(err, "decode event", j.KV("index", index))
	}
	return &Event{
		Index:  index,
		Record: rec,
		Block:  block,
		Head:   s.buf.Len(),
	}, nil
}

// RegisterConsumer returns a new replay cursor positioned at index zero.
func (s *Session) RegisterConsumer() (ConsumerID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}

	id := s.nextID
	s.nextID++
	s.consumers[id] = &cursor{it: s.buf.Iterate(0, rbuffer.WithFollow())}

	return id, nil
}

// UnregisterConsumer releases the replay cursor. It does not wait for a
// concurrent ConsumeNext of the same consumer, which returns
// rbuffer.ErrIteratorClosed.
func (s *Session) UnregisterConsumer(id ConsumerID) error {
	s.mu.Lock()
	c, ok := s.consumers[id]
	delete(s.consumers, id)
	s.mu.Unlock()

	if !ok {
		return errors.Wrap(ErrUnknownConsumer, "", j.KV("consumer", id))
	}

	c.it.Close()
	return nil
}

// ConsumeNext returns the next event of the consumer's replay cursor. It
// blocks at the live end of the buffer while the session is open and
// returns ErrEndOfStream once the consumer caught up with a closed session.
func (s *Session) ConsumeNext(ctx context.Context, id ConsumerID) (*Event, error) {
	s.mu.Lock()
	c, ok := s.consumers[id]
	s.mu.Unlock()

	if !ok {
		return nil, errors.Wrap(ErrUnknownConsumer, "", j.KV("consumer", id))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	index, block, err := c.it.Next(ctx)
	if errors.Is(err, rbuffer.ErrSealed) {
		return nil, ErrEndOfStream
	} else if err != nil {
		return nil, err
	}

	return s.decode(index, block)
}

// Close transitions the session to closed. It seals the buffer, closes the
// queue and waits for in-flight Produce calls to return. Queued events can
// still be popped and the buffer remains readable. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.buf.Seal()
	s.q.Close()
	s.inflight.Wait()

	log.Info(context.Background(), "session closed",
		j.MKV{"session": s.name, "events": s.buf.Len(), "queued": s.q.Len()})

	metrics.DeleteSession(s.name)

	return nil
}
