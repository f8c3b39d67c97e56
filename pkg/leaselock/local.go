package leaselock

import (
	"context"
	"sync"
)

// Local is an in-process Locker used when no database is configured.
// Leases never expire; Options.TTL and the renew settings are ignored.
type Local struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]chan struct{})}
}

func (l *Local) WithLease(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	if err := l.acquire(ctx, key, opts); err != nil {
		return err
	}
	defer l.release(key)
	return fn(ctx)
}

func (l *Local) acquire(ctx context.Context, key string, opts Options) error {
	for {
		l.mu.Lock()
		held, busy := l.locks[key]
		if !busy {
			l.locks[key] = make(chan struct{})
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		if !opts.Wait {
			return ErrBusy
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-held:
		}
	}
}

func (l *Local) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if held, ok := l.locks[key]; ok {
		close(held)
		delete(l.locks, key)
	}
}

var (
	_ Locker = (*Client)(nil)
	_ Locker = (*Local)(nil)
)
