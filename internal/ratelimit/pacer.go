package ratelimit

import (
	"context"
	"sync"
	"time"
)

const keyERPRequests = "delinquency:erp:requests"

// Pacer enforces a minimum gap between outbound ERP requests. With Redis
// slots the gap is shared by every replica; otherwise it is per process.
type Pacer struct {
	interval time.Duration
	slots    *Slots

	mu   sync.Mutex
	last time.Time
}

func NewPacer(interval time.Duration, slots *Slots) *Pacer {
	return &Pacer{interval: interval, slots: slots}
}

// Wait blocks until the next request may be sent or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.interval <= 0 {
		return ctx.Err()
	}
	if p.slots != nil {
		wait, err := p.slots.Reserve(ctx, keyERPRequests, p.interval)
		if err != nil {
			return err
		}
		return sleep(ctx, wait)
	}

	p.mu.Lock()
	wait := time.Until(p.last.Add(p.interval))
	if wait < 0 {
		wait = 0
	}
	p.last = time.Now().Add(wait)
	p.mu.Unlock()

	return sleep(ctx, wait)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
