package repository

import (
	"context"
	"sync"
)

// Subscription is a handle on a live query. Cancel stops delivery; it never
// cancels work that is already queued.
type Subscription interface {
	Cancel()
}

type refresher interface {
	refresh(ctx context.Context)
	stop()
}

// liveQuery re-runs query after every write and hands the newest snapshot to
// its callback on a dedicated goroutine. Snapshots that arrive while the
// callback is busy replace each other, so a slow reader only sees the latest.
type liveQuery[T any] struct {
	id      uint64
	name    string
	d       *Dispatcher
	query   func(ctx context.Context) (T, error)
	deliver func(T)

	mailbox  chan T
	stopped  chan struct{}
	stopOnce sync.Once
}

func observe[T any](d *Dispatcher, name string, query func(ctx context.Context) (T, error), fn func(T)) Subscription {
	q := &liveQuery[T]{
		name:    name,
		d:       d,
		query:   query,
		deliver: fn,
		mailbox: make(chan T, 1),
		stopped: make(chan struct{}),
	}
	go q.loop()

	q.id = d.register(q)

	// The initial snapshot queues behind pending writes so it reflects them.
	_, err := d.enqueue("observe "+name, jobRead, func(ctx context.Context) (int64, error) {
		q.refresh(ctx)
		return 0, nil
	})
	if err != nil {
		q.Cancel()
	}
	return q
}

func (q *liveQuery[T]) loop() {
	for {
		select {
		case <-q.stopped:
			return
		case v := <-q.mailbox:
			select {
			case <-q.stopped:
				return
			default:
			}
			q.deliver(v)
		}
	}
}

func (q *liveQuery[T]) refresh(ctx context.Context) {
	select {
	case <-q.stopped:
		return
	default:
	}
	v, err := q.query(ctx)
	if err != nil {
		q.d.log.Errorf("refresh %s failed: %v", q.name, err)
		return
	}
	q.push(v)
}

// push replaces any undelivered snapshot with v. Refreshes of one query never
// overlap, so the drain-then-send loop cannot starve.
func (q *liveQuery[T]) push(v T) {
	for {
		select {
		case q.mailbox <- v:
			return
		default:
		}
		select {
		case <-q.mailbox:
		default:
		}
	}
}

func (q *liveQuery[T]) stop() {
	q.stopOnce.Do(func() { close(q.stopped) })
}

// Cancel unregisters the query and stops its delivery goroutine.
func (q *liveQuery[T]) Cancel() {
	q.d.unregister(q.id)
	q.stop()
}
