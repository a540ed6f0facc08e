package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// GroupQuota is implemented by anything that can name its rate-limit bucket,
// typically a vendor credential. Calls sharing a group share one budget.
type GroupQuota interface {
	ConcurrencyGroup() string
	ConcurrencyQuota() int
}

// DefaultQuota applies when a group reports a non-positive quota.
const DefaultQuota = 10

type groupLimiter struct {
	sem *semaphore.Weighted
	tb  *rate.Limiter
}

// Registry holds one limiter per concurrency group. Limiters are created
// lazily on first use and never torn down mid-process; a group's quota is
// fixed by whichever caller touches it first.
type Registry struct {
	mu     sync.Mutex
	groups map[string]*groupLimiter
}

func NewRegistry() *Registry {
	return &Registry{groups: map[string]*groupLimiter{}}
}

func (r *Registry) limiter(group string, quota int) *groupLimiter {
	if quota <= 0 {
		quota = DefaultQuota
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.groups[group]
	if !ok {
		l = &groupLimiter{
			sem: semaphore.NewWeighted(int64(quota)),
			tb:  rate.NewLimiter(rate.Limit(quota), quota),
		}
		r.groups[group] = l
	}
	return l
}

// Acquire blocks until a token for the group is available: it waits out the
// group's token bucket, then takes one of the quota in-flight slots. Every
// successful Acquire must be paired with a Release.
func (r *Registry) Acquire(ctx context.Context, group string, quota int) error {
	l := r.limiter(group, quota)
	if err := l.tb.Wait(ctx); err != nil {
		return err
	}
	return l.sem.Acquire(ctx, 1)
}

// Release frees an in-flight slot taken by Acquire.
func (r *Registry) Release(group string) {
	r.mu.Lock()
	l := r.groups[group]
	r.mu.Unlock()
	if l != nil {
		l.sem.Release(1)
	}
}

// Do runs fn under the caller's group token. This is the wrapper form used
// around every outbound vendor call.
func (r *Registry) Do(ctx context.Context, gq GroupQuota, fn func(context.Context) error) error {
	group := gq.ConcurrencyGroup()
	if err := r.Acquire(ctx, group, gq.ConcurrencyQuota()); err != nil {
		return err
	}
	defer r.Release(group)
	return fn(ctx)
}
