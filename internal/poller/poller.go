package poller

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/ids"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/metrics"
)

// Func is one fetch+reconcile cycle.
type Func func(ctx context.Context) error

type Options struct {
	Name     string
	Interval time.Duration
	// Jitter adds a uniform random delay in [0, Jitter] before each
	// subsequent cycle.
	Jitter time.Duration
}

// Handle identifies one running subscription.
type Handle struct {
	id   string
	name string
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (h *Handle) ID() string   { return h.id }
func (h *Handle) Name() string { return h.name }

// Done is closed once the subscription's goroutine has exited, after any
// in-flight cycle has completed.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) signal() {
	h.once.Do(func() { close(h.stop) })
}

// Poller runs interval-driven subscriptions. Each subscription owns one
// goroutine, so its cycles never overlap, and the next cycle is scheduled
// only after the previous one has returned.
type Poller struct {
	mu     sync.Mutex
	subs   map[string]*Handle
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
	jitter func(max time.Duration) time.Duration
}

func New(logger zerolog.Logger) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		subs:   map[string]*Handle{},
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "poller").Logger(),
		jitter: uniformJitter,
	}
}

func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max) + 1))
}

// Start launches a subscription. The first cycle runs immediately.
func (p *Poller) Start(fn Func, opts Options) *Handle {
	h := &Handle{
		id:   ids.New(),
		name: opts.Name,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if h.name == "" {
		h.name = h.id
	}

	p.mu.Lock()
	p.subs[h.id] = h
	p.mu.Unlock()
	metrics.ActiveSubscriptions.Inc()

	p.logger.Debug().Str("subscription", h.name).Dur("interval", opts.Interval).Msg("subscription started")
	go p.run(h, fn, opts)
	return h
}

// Stop cancels a subscription gracefully: an in-flight cycle completes but
// no further cycle is scheduled. It does not wait; use Handle.Done for that.
func (p *Poller) Stop(h *Handle) {
	if h == nil {
		return
	}
	h.signal()
}

// StopAll stops every subscription and waits until each has exited.
func (p *Poller) StopAll() {
	p.mu.Lock()
	handles := make([]*Handle, 0, len(p.subs))
	for _, h := range p.subs {
		handles = append(handles, h)
	}
	p.mu.Unlock()

	for _, h := range handles {
		h.signal()
	}
	for _, h := range handles {
		<-h.done
	}
}

// Shutdown stops everything and also cancels the context handed to
// in-flight cycles. Meant for process exit only.
func (p *Poller) Shutdown() {
	p.cancel()
	p.StopAll()
}

func (p *Poller) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *Poller) run(h *Handle, fn Func, opts Options) {
	defer func() {
		p.mu.Lock()
		delete(p.subs, h.id)
		p.mu.Unlock()
		metrics.ActiveSubscriptions.Dec()
		close(h.done)
		p.logger.Debug().Str("subscription", h.name).Msg("subscription stopped")
	}()

	failures := 0
	for attempt := 1; ; attempt++ {
		select {
		case <-h.stop:
			return
		default:
		}

		if err := p.cycle(h, fn); err != nil {
			failures++
			p.logger.Warn().
				Err(err).
				Str("subscription", h.name).
				Int("attempt", attempt).
				Int("consecutive_failures", failures).
				Msg("poll cycle failed")
		} else {
			failures = 0
		}

		timer := time.NewTimer(opts.Interval + p.jitter(opts.Jitter))
		select {
		case <-h.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Poller) cycle(h *Handle, fn Func) (err error) {
	start := time.Now()
	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			result = "panic"
		}
		metrics.PollCycles.WithLabelValues(h.name, result).Inc()
		metrics.PollCycleDuration.WithLabelValues(h.name).Observe(time.Since(start).Seconds())
	}()

	if err = fn(p.ctx); err != nil {
		result = "error"
	}
	return err
}
