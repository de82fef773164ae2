package repository

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"relayconf/internal/logging"
	pkgerrors "relayconf/pkg/errors"
)

// refreshLimit bounds how many live queries re-run at once after a write.
const refreshLimit = 4

type jobKind int

const (
	jobWrite jobKind = iota // refreshes live queries on success
	jobRead
)

type job struct {
	name   string
	kind   jobKind
	fn     func(ctx context.Context) (int64, error)
	ticket *Ticket
}

// Dispatcher is the single background execution context shared by the
// repositories. Jobs run one at a time in submission order, and every
// successful write re-publishes all live queries.
type Dispatcher struct {
	log *logging.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*job
	closed bool
	done   chan struct{}

	liveMu sync.Mutex
	live   map[uint64]refresher
	nextID uint64
}

// NewDispatcher starts the worker goroutine.
func NewDispatcher(logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	d := &Dispatcher{
		log:  logger,
		done: make(chan struct{}),
		live: make(map[uint64]refresher),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// Submit queues a write. It never blocks on the job itself.
func (d *Dispatcher) Submit(name string, fn func(ctx context.Context) (int64, error)) (*Ticket, error) {
	return d.enqueue(name, jobWrite, fn)
}

func (d *Dispatcher) enqueue(name string, kind jobKind, fn func(ctx context.Context) (int64, error)) (*Ticket, error) {
	t := newTicket()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, pkgerrors.ErrDispatcherClosed
	}
	d.queue = append(d.queue, &job{name: name, kind: kind, fn: fn, ticket: t})
	d.cond.Signal()
	return t, nil
}

// Read queues fn behind pending writes. It never triggers a refresh.
func (d *Dispatcher) Read(name string, fn func(ctx context.Context) error) (*Ticket, error) {
	return d.enqueue(name, jobRead, func(ctx context.Context) (int64, error) {
		return 0, fn(ctx)
	})
}

// Flush waits until every job submitted before the call has finished.
func (d *Dispatcher) Flush(ctx context.Context) error {
	t, err := d.enqueue("flush", jobRead, func(context.Context) (int64, error) { return 0, nil })
	if err != nil {
		return err
	}
	return t.Wait(ctx)
}

// Close stops accepting jobs, drains the queue and cancels all live queries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.cond.Signal()
	d.mu.Unlock()

	<-d.done

	d.liveMu.Lock()
	live := d.live
	d.live = make(map[uint64]refresher)
	d.liveMu.Unlock()
	for _, r := range live {
		r.stop()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		j := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.execute(j)
	}
}

// execute runs one job. Writes are never cancelled, so they get a
// background context rather than the caller's.
func (d *Dispatcher) execute(j *job) {
	ctx := context.Background()
	id, err := j.fn(ctx)
	switch {
	case err == nil:
		if j.kind == jobWrite {
			d.refreshAll(ctx)
		}
	case pkgerrors.IsConsistencyViolation(err):
		d.log.Errorf("%s aborted: %v", j.name, err)
	default:
		d.log.Errorf("%s failed: %v", j.name, err)
	}
	j.ticket.complete(id, err)
}

func (d *Dispatcher) refreshAll(ctx context.Context) {
	d.liveMu.Lock()
	targets := make([]refresher, 0, len(d.live))
	for _, r := range d.live {
		targets = append(targets, r)
	}
	d.liveMu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshLimit)
	for _, r := range targets {
		g.Go(func() error {
			r.refresh(gctx)
			return nil
		})
	}
	g.Wait()
}

func (d *Dispatcher) register(r refresher) uint64 {
	d.liveMu.Lock()
	defer d.liveMu.Unlock()
	d.nextID++
	d.live[d.nextID] = r
	return d.nextID
}

func (d *Dispatcher) unregister(id uint64) {
	d.liveMu.Lock()
	delete(d.live, id)
	d.liveMu.Unlock()
}

// Ticket reports the completion of a submitted job. Callers that treat a
// command as fire-and-forget can ignore it.
type Ticket struct {
	done chan struct{}
	id   int64
	err  error
}

func newTicket() *Ticket {
	return &Ticket{done: make(chan struct{})}
}

func (t *Ticket) complete(id int64, err error) {
	t.id = id
	t.err = err
	close(t.done)
}

// Done is closed once the job has run.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the job has run or ctx ends, and returns the job's error.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ID returns the key assigned by an insert. Valid after Done is closed.
func (t *Ticket) ID() int64 {
	<-t.done
	return t.id
}
