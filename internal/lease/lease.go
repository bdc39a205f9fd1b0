// Package lease provides time-bounded, renewable mutual exclusion keyed by
// rule id. A crashed holder's lease expires on its own, so another worker can
// pick the rule up without manual cleanup.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotHeld is returned when renewing or releasing a lease the caller no
// longer holds, usually because it expired and another worker took it.
var ErrNotHeld = errors.New("lease not held")

// Locker is a lease backend.
type Locker interface {
	// Acquire takes the lease for holder if it is free, expired, or already
	// held by holder. It reports false when another holder owns it.
	Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
	Renew(ctx context.Context, key, holder string, ttl time.Duration) error
	Release(ctx context.Context, key, holder string) error
}

// Lease is an acquired lease that renews itself lazily.
type Lease struct {
	locker    Locker
	key       string
	holder    string
	ttl       time.Duration
	now       func() time.Time
	renewedAt time.Time
}

// Hold acquires key for holder. It returns (nil, nil) when the lease is held
// elsewhere.
func Hold(ctx context.Context, l Locker, key, holder string, ttl time.Duration, now func() time.Time) (*Lease, error) {
	if now == nil {
		now = time.Now
	}
	ok, err := l.Acquire(ctx, key, holder, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquiring lease %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lease{locker: l, key: key, holder: holder, ttl: ttl, now: now, renewedAt: now()}, nil
}

func (l *Lease) Key() string { return l.key }

// KeepAlive renews the lease once a third of its TTL has passed since the
// last renewal. It returns ErrNotHeld if the lease was lost.
func (l *Lease) KeepAlive(ctx context.Context) error {
	now := l.now()
	if now.Sub(l.renewedAt) < l.ttl/3 {
		return nil
	}
	if err := l.locker.Renew(ctx, l.key, l.holder, l.ttl); err != nil {
		return fmt.Errorf("renewing lease %s: %w", l.key, err)
	}
	l.renewedAt = now
	return nil
}

// Release gives the lease up. Releasing a lease that already expired is not
// an error.
func (l *Lease) Release(ctx context.Context) error {
	err := l.locker.Release(ctx, l.key, l.holder)
	if err != nil && !errors.Is(err, ErrNotHeld) {
		return fmt.Errorf("releasing lease %s: %w", l.key, err)
	}
	return nil
}
