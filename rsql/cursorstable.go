package rsql

import (
	"context"
	"database/sql"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"

	"github.com/luno/repyable"
)

const (
	defaultCursorField = "last_index"
	defaultIDField     = "id"
	defaultTimeField   = "updated_at"
	defaultAsyncPeriod = time.Second * 5
)

// CursorsTable provides an interface to a consumer cursors db table.
type CursorsTable interface {
	GetCursor(ctx context.Context, dbc *sql.DB, consumerName string) (string, error)
	SetCursor(ctx context.Context, dbc *sql.DB, consumerName string, cursor string) error
	Flush(ctx context.Context) error
	Clone(ol ...CursorsOption) CursorsTable
	ToStore(dbc *sql.DB, ol ...CursorsOption) repyable.CursorStore

	// CreateTable creates the table if it does not exist.
	CreateTable(ctx context.Context, dbc *sql.DB) error
}

// NewCursorsTable returns a new CursorsTable implementation.
func NewCursorsTable(name string, options ...CursorsOption) CursorsTable {
	table := &ctable{
		schema: ctableSchema{
			name:        name,
			cursorField: defaultCursorField,
			idField:     defaultIDField,
			timeField:   defaultTimeField,
		},
		sleep:        time.Sleep,
		setCounter:   cursorWritesTotal.WithLabelValues(name).Inc,
		flushErrors:  cursorFlushErrorsTotal.WithLabelValues(name).Inc,
		asyncPeriod:  defaultAsyncPeriod,
		asyncCursors: make(map[string]asyncCursor),
	}
	for _, o := range options {
		o(table)
	}

	return table
}

// CursorsOption are the configurations for the cursor table
type CursorsOption func(*ctable)

// WithCursorField provides an option to configure the cursor field.
// It defaults to 'last_index'.
func WithCursorField(field string) CursorsOption {
	return func(table *ctable) {
		table.schema.cursorField = field
	}
}

// WithCursorIDField provides an option to configure the consumer name field.
// It defaults to 'id'.
func WithCursorIDField(field string) CursorsOption {
	return func(table *ctable) {
		table.schema.idField = field
	}
}

// WithCursorTimeField provides an option to configure the cursor time field.
// It defaults to 'updated_at'.
func WithCursorTimeField(field string) CursorsOption {
	return func(table *ctable) {
		table.schema.timeField = field
	}
}

// WithCursorAsyncPeriod provides an option to configure the async write period.
// It defaults to 5 seconds.
func WithCursorAsyncPeriod(d time.Duration) CursorsOption {
	return func(table *ctable) {
		table.asyncPeriod = d
	}
}

// WithCursorAsyncDisabled provides an option to disable async writes.
func WithCursorAsyncDisabled() CursorsOption {
	return WithCursorAsyncPeriod(0)
}

// WithCursorSetCounter provides an option to set the cursor DB set cursor metric.
// It defaults to prometheus metrics.
func WithCursorSetCounter(f func()) CursorsOption {
	return func(table *ctable) {
		table.setCounter = f
	}
}

// WithTestCursorSleep replaces the sleep function for testing.
func WithTestCursorSleep(_ testing.TB, f func(time.Duration)) CursorsOption {
	return func(table *ctable) {
		table.sleep = f
	}
}

var _ CursorsTable = (*ctable)(nil)

type asyncCursor struct {
	dbc    *sql.DB
	cursor int64
}

type ctable struct {
	schema      ctableSchema
	sleep       func(d time.Duration) // Abstracted for testing
	setCounter  func()
	flushErrors func()

	flushMu      sync.Mutex // Serialises writes to the DB
	cursorMu     sync.Mutex // Protects asyncCursors
	cursorOnce   sync.Once
	asyncCursors map[string]asyncCursor
	asyncPeriod  time.Duration
}

// ctableSchema defines the mysql schema of a cursors table.
type ctableSchema struct {
	name        string
	cursorField string
	idField     string
	timeField   string
}

// parseCursor converts a repyable cursor (the index of the last consumed
// event) to the stored int.
func parseCursor(cursor string) (int64, error) {
	i, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil || i < 0 {
		return 0, errors.Wrap(ErrInvalidCursor, "", j.KS("cursor", cursor))
	}
	return i, nil
}

func (t *ctable) GetCursor(ctx context.Context, dbc *sql.DB, consumerName string) (string, error) {
	c, _, ok, err := getCursor(ctx, dbc, t.schema, consumerName)
	if err != nil {
		return "", err
	} else if !ok {
		return "", nil
	}
	return strconv.FormatInt(c, 10), nil
}

func (t *ctable) SetCursor(ctx context.Context, dbc *sql.DB, consumerName string, cursor string) error {
	c, err := parseCursor(cursor)
	if err != nil {
		return err
	}
	if !t.isAsyncEnabled() {
		t.setCounter()
		return setCursor(ctx, dbc, t.schema, consumerName, c)
	}

	t.cursorOnce.Do(func() {
		go t.flushForever()
	})

	t.cursorMu.Lock()
	defer t.cursorMu.Unlock()

	t.asyncCursors[consumerName] = asyncCursor{dbc: dbc, cursor: c}
	cursorsPending.WithLabelValues(t.schema.name).Set(float64(len(t.asyncCursors)))
	return nil
}

func (t *ctable) isAsyncEnabled() bool {
	return t.asyncPeriod > 0
}

// Flush writes all pending async cursors to the DB. Cursors that fail to
// write are retained for the next flush unless a newer cursor was set.
func (t *ctable) Flush(ctx context.Context) error {
	if !t.isAsyncEnabled() {
		return nil
	}

	// Grab the flush mutex before swapping the pending cursors so
	// concurrent flushes write in order.
	t.flushMu.Lock()
	defer t.flushMu.Unlock()

	t.cursorMu.Lock()
	m := t.asyncCursors
	t.asyncCursors = make(map[string]asyncCursor)
	t.cursorMu.Unlock()

	var firstErr error
	for name, ac := range m {
		t.setCounter()
		err := setCursor(ctx, ac.dbc, t.schema, name, ac.cursor)
		if err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
		if errors.Is(err, ErrStaleCursor) {
			cursorStaleTotal.WithLabelValues(t.schema.name).Inc()
			continue
		}

		t.cursorMu.Lock()
		if _, ok := t.asyncCursors[name]; !ok {
			t.asyncCursors[name] = ac
		}
		t.cursorMu.Unlock()
	}

	t.cursorMu.Lock()
	cursorsPending.WithLabelValues(t.schema.name).Set(float64(len(t.asyncCursors)))
	t.cursorMu.Unlock()

	return firstErr
}

func (t *ctable) Clone(ol ...CursorsOption) CursorsTable {
	table := &ctable{
		schema:       t.schema,
		sleep:        t.sleep,
		asyncPeriod:  t.asyncPeriod,
		setCounter:   t.setCounter,
		flushErrors:  t.flushErrors,
		asyncCursors: make(map[string]asyncCursor),
	}

	for _, o := range ol {
		o(table)
	}

	return table
}

func (t *ctable) ToStore(dbc *sql.DB, ol ...CursorsOption) repyable.CursorStore {
	cs := &cursorStore{
		t:   t,
		dbc: dbc,
	}
	if len(ol) > 0 {
		cs.t = t.Clone(ol...).(*ctable)
	}
	return cs
}

func (t *ctable) CreateTable(ctx context.Context, dbc *sql.DB) error {
	_, err := dbc.ExecContext(ctx, t.schema.createQuery())
	if err != nil {
		return errors.Wrap(err, "create cursors table", j.KS("table", t.schema.name))
	}
	return nil
}

func (t *ctable) flushForever() {
	for {
		t.sleep(t.asyncPeriod)

		ctx := context.Background()
		if err := t.Flush(ctx); err != nil {
			t.flushErrors()
			log.Error(ctx, errors.Wrap(err, "repyable: error flushing cursor",
				j.KS("table", t.schema.name)))
		}
	}
}

type cursorStore struct {
	t   *ctable
	dbc *sql.DB
}

func (cs *cursorStore) GetCursor(ctx context.Context, consumerName string) (string, error) {
	return cs.t.GetCursor(ctx, cs.dbc, consumerName)
}

func (cs *cursorStore) SetCursor(ctx context.Context, consumerName string, cursor string) error {
	return cs.t.SetCursor(ctx, cs.dbc, consumerName, cursor)
}

func (cs *cursorStore) Flush(ctx context.Context) error {
	return cs.t.Flush(ctx)
}
