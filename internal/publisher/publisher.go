// Package publisher runs the background price feed.
//
// A Publisher owns one loop goroutine that, on every tick of its clock,
// draws a price from a PriceSource and pushes it through a ports.Pusher.
// Start and Stop are idempotent and serialized by a single mutex.
package publisher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/brianly1003/stockchat/internal/domain"
	"github.com/brianly1003/stockchat/internal/domain/events"
	"github.com/brianly1003/stockchat/internal/domain/ports"
	"github.com/brianly1003/stockchat/internal/sync"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is the tick period.
const DefaultInterval = time.Second

// closeTimeout bounds the Stop performed by Close.
const closeTimeout = 5 * time.Second

// State is the publisher lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Publisher periodically pushes price ticks.
type Publisher struct {
	source   PriceSource
	pusher   ports.Pusher
	clock    clockwork.Clock
	interval time.Duration

	// mu serializes lifecycle transitions. Stop holds it while waiting for
	// the loop, so the loop never takes it.
	mu       sync.Mutex
	disposed bool
	cancel   context.CancelFunc
	done     chan struct{}

	// state is written under mu and read without it, so State never waits
	// on a Stop in progress.
	state atomic.Int32

	ticks atomic.Uint64

	faultMu sync.Mutex
	fault   error
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithClock sets the clock used for the ticker.
func WithClock(c clockwork.Clock) Option {
	return func(p *Publisher) {
		p.clock = c
	}
}

// WithInterval sets the tick period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.interval = d
		}
	}
}

// New creates a stopped publisher.
func New(source PriceSource, pusher ports.Pusher, opts ...Option) *Publisher {
	p := &Publisher{
		source:   source,
		pusher:   pusher,
		clock:    clockwork.NewRealClock(),
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the loop. The loop runs until Stop is called or ctx is done.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return domain.ErrAlreadyDisposed
	}

	switch state := p.State(); state {
	case StateRunning, StateStarting:
		log.Warn().Str("state", state.String()).Msg("publisher already started")
		return nil
	case StateStopping:
		return domain.ErrPublisherStopping
	}

	p.setState(StateStarting)

	loopCtx, cancel := context.WithCancel(ctx)
	ticker := p.clock.NewTicker(p.interval)
	done := make(chan struct{})

	p.cancel = cancel
	p.done = done
	p.setFault(nil)

	go p.run(loopCtx, ticker, done)

	p.setState(StateRunning)
	log.Info().Dur("interval", p.interval).Msg("publisher started")
	return nil
}

// Stop cancels the loop and waits for it to exit. If ctx expires first the
// publisher stays in StateStopping and a later Stop may finish the wait.
func (p *Publisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() == StateStopped {
		log.Info().Msg("publisher already stopped")
		return nil
	}

	p.setState(StateStopping)
	p.cancel()

	select {
	case <-p.done:
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Msg("publisher stop timed out")
		return fmt.Errorf("stop publisher: %w", ctx.Err())
	}

	p.cancel = nil
	p.done = nil
	p.setState(StateStopped)
	log.Info().Uint64("ticks", p.ticks.Load()).Msg("publisher stopped")
	return nil
}

// Close stops the publisher and disposes it. Further Starts fail with
// domain.ErrAlreadyDisposed.
func (p *Publisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	err := p.Stop(ctx)

	p.mu.Lock()
	p.disposed = true
	p.mu.Unlock()
	return err
}

// State returns the current lifecycle state.
func (p *Publisher) State() State {
	return State(p.state.Load())
}

func (p *Publisher) setState(s State) {
	p.state.Store(int32(s))
}

// Err returns the fault that ended the loop, if any.
func (p *Publisher) Err() error {
	p.faultMu.Lock()
	defer p.faultMu.Unlock()
	return p.fault
}

func (p *Publisher) setFault(err error) {
	p.faultMu.Lock()
	p.fault = err
	p.faultMu.Unlock()
}

// Ticks returns the number of ticks pushed since construction.
func (p *Publisher) Ticks() uint64 {
	return p.ticks.Load()
}

func (p *Publisher) run(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			// Cancellation wins over a tick that fired concurrently.
			if ctx.Err() != nil {
				return
			}
			if err := p.tick(); err != nil {
				log.Error().Err(err).Msg("publisher loop terminated")
				p.setFault(err)
				return
			}
		}
	}
}

func (p *Publisher) tick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()

	price, err := p.source.Next()
	if err != nil {
		return fmt.Errorf("next price: %w", err)
	}

	p.ticks.Add(1)
	delivered := p.pusher.Push(events.NewPostStocksEvent(price))

	log.Trace().
		Str("label", price.Label).
		Float64("value", price.Value).
		Int("delivered", delivered).
		Msg("price published")
	return nil
}

// Ensure Publisher implements ports.Publisher.
var _ ports.Publisher = (*Publisher)(nil)
