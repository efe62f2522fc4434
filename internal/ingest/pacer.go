package ingest

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// hostPacer keeps feed requests polite: each host gets a bounded number of
// requests in flight and a minimum gap between request starts.
type hostPacer struct {
	inFlight int64
	gap      time.Duration

	mu    sync.Mutex
	hosts map[string]*hostSlot
}

type hostSlot struct {
	slots *semaphore.Weighted
	pace  *rate.Limiter
}

func newHostPacer(inFlight int, gap time.Duration) *hostPacer {
	return &hostPacer{
		inFlight: int64(max(inFlight, 1)),
		gap:      gap,
		hosts:    make(map[string]*hostSlot),
	}
}

func (p *hostPacer) slot(host string) *hostSlot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.hosts[host]
	if !ok {
		limit := rate.Inf
		if p.gap > 0 {
			limit = rate.Every(p.gap)
		}
		s = &hostSlot{
			slots: semaphore.NewWeighted(p.inFlight),
			pace:  rate.NewLimiter(limit, 1),
		}
		p.hosts[host] = s
	}
	return s
}

// wait blocks until a request to host may start. The returned func must be
// called once the request is done.
func (p *hostPacer) wait(ctx context.Context, host string) (func(), error) {
	s := p.slot(host)
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := s.pace.Wait(ctx); err != nil {
		s.slots.Release(1)
		return nil, err
	}
	return func() { s.slots.Release(1) }, nil
}
