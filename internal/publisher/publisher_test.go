package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianly1003/stockchat/internal/domain"
	"github.com/brianly1003/stockchat/internal/domain/events"
	"github.com/brianly1003/stockchat/internal/testutil"
	"github.com/jonboulle/clockwork"
)

type stubSource struct {
	err   error
	panic bool
	value float64
}

func (s *stubSource) Next() (events.PriceTick, error) {
	if s.panic {
		panic("source exploded")
	}
	if s.err != nil {
		return events.PriceTick{}, s.err
	}
	return events.PriceTick{Label: DefaultLabel, Value: s.value}, nil
}

// blockingPusher blocks every Push until release is closed.
type blockingPusher struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingPusher) Push(events.Event) int {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	return 0
}

func waitForPush(t *testing.T, p *testutil.MockPusher) events.Event {
	t.Helper()
	select {
	case e := <-p.Pushed():
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push")
		return nil
	}
}

func advance(t *testing.T, clock *clockwork.FakeClock, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("ticker never registered: %v", err)
	}
	clock.Advance(d)
}

func TestPublisher_TicksOncePerInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	pusher := testutil.NewMockPusher(1)
	p := New(&stubSource{value: 105}, pusher, WithClock(clock), WithInterval(time.Second))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = p.Close() }()

	if p.State() != StateRunning {
		t.Fatalf("State = %s, want running", p.State())
	}

	// Nothing is published before the first interval elapses.
	if pusher.Count() != 0 {
		t.Fatalf("pushed %d events before first tick", pusher.Count())
	}

	for i := 0; i < 3; i++ {
		advance(t, clock, time.Second)
		e := waitForPush(t, pusher)
		if e.Type() != events.EventTypePostStocks {
			t.Fatalf("event type = %s", e.Type())
		}
		payload := e.Payload().(events.PostStocksPayload)
		if payload.Value != 105 || payload.Label != DefaultLabel {
			t.Errorf("unexpected payload %+v", payload)
		}
	}

	if got := p.Ticks(); got != 3 {
		t.Errorf("Ticks = %d, want 3", got)
	}
}

func TestPublisher_StartIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	pusher := testutil.NewMockPusher(0)
	p := New(&stubSource{value: 101}, pusher, WithClock(clock))
	defer func() { _ = p.Close() }()

	for i := 0; i < 3; i++ {
		if err := p.Start(context.Background()); err != nil {
			t.Fatalf("Start() #%d error = %v", i, err)
		}
	}

	advance(t, clock, DefaultInterval)
	waitForPush(t, pusher)

	// A second loop would have produced a second push for the same tick.
	select {
	case <-pusher.Pushed():
		t.Fatal("more than one loop is running")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublisher_StopIsIdempotentAndBounded(t *testing.T) {
	pusher := testutil.NewMockPusher(0)
	p := New(&stubSource{value: 101}, pusher, WithInterval(10*time.Millisecond))

	// Stop before Start is a no-op.
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() before Start error = %v", err)
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitForPush(t, pusher)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Stop took %v", elapsed)
	}
	if p.State() != StateStopped {
		t.Errorf("State = %s, want stopped", p.State())
	}

	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}

	count := pusher.Count()
	time.Sleep(50 * time.Millisecond)
	if pusher.Count() != count {
		t.Errorf("ticks published after Stop: %d -> %d", count, pusher.Count())
	}
}

func TestPublisher_RestartAfterStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	pusher := testutil.NewMockPusher(0)
	p := New(&stubSource{value: 110}, pusher, WithClock(clock))
	defer func() { _ = p.Close() }()

	_ = p.Start(context.Background())
	_ = p.Stop(context.Background())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	advance(t, clock, DefaultInterval)
	waitForPush(t, pusher)
}

func TestPublisher_StopTimeoutLeavesStopping(t *testing.T) {
	clock := clockwork.NewFakeClock()
	pusher := &blockingPusher{entered: make(chan struct{}, 1), release: make(chan struct{})}
	p := New(&stubSource{value: 101}, pusher, WithClock(clock))

	_ = p.Start(context.Background())
	advance(t, clock, DefaultInterval)
	<-pusher.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Stop(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Stop() error = %v, want deadline exceeded", err)
	}
	if p.State() != StateStopping {
		t.Fatalf("State = %s, want stopping", p.State())
	}
	if err := p.Start(context.Background()); !errors.Is(err, domain.ErrPublisherStopping) {
		t.Errorf("Start() while stopping error = %v", err)
	}

	close(pusher.release)
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if p.State() != StateStopped {
		t.Errorf("State = %s, want stopped", p.State())
	}
}

func TestPublisher_StateDoesNotWaitForStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	pusher := &blockingPusher{entered: make(chan struct{}, 1), release: make(chan struct{})}
	p := New(&stubSource{value: 101}, pusher, WithClock(clock))

	_ = p.Start(context.Background())
	advance(t, clock, DefaultInterval)
	<-pusher.entered

	stopped := make(chan error, 1)
	go func() { stopped <- p.Stop(context.Background()) }()

	// Stop is now blocked on the loop; State must still answer.
	deadline := time.After(time.Second)
	for p.State() != StateStopping {
		select {
		case <-deadline:
			t.Fatalf("State = %s, want stopping while Stop waits", p.State())
		case <-time.After(time.Millisecond):
		}
	}

	read := make(chan State, 1)
	go func() { read <- p.State() }()
	select {
	case s := <-read:
		if s != StateStopping {
			t.Errorf("State = %s, want stopping", s)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("State blocked behind Stop")
	}

	close(pusher.release)
	if err := <-stopped; err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if p.State() != StateStopped {
		t.Errorf("State = %s, want stopped", p.State())
	}
}

func TestPublisher_ConcurrentStartStop(t *testing.T) {
	pusher := testutil.NewMockPusher(0)
	p := New(&stubSource{value: 104}, pusher, WithInterval(time.Millisecond))

	const pairs = 50
	var wg sync.WaitGroup
	for i := 0; i < pairs; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			if err := p.Start(context.Background()); err != nil && !errors.Is(err, domain.ErrPublisherStopping) {
				t.Errorf("Start() error = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := p.Stop(ctx); err != nil {
				t.Errorf("Stop() error = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			_ = p.State().String()
			_ = p.Err()
			_ = p.Ticks()
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("final Stop() error = %v", err)
	}
	if p.State() != StateStopped {
		t.Fatalf("State = %s, want stopped", p.State())
	}
	if err := p.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}

	count := pusher.Count()
	time.Sleep(20 * time.Millisecond)
	if pusher.Count() != count {
		t.Errorf("ticks published after final Stop: %d -> %d", count, pusher.Count())
	}
}

func TestPublisher_FaultEndsLoopKeepsState(t *testing.T) {
	tests := []struct {
		name   string
		source *stubSource
	}{
		{"error", &stubSource{err: errors.New("feed unavailable")}},
		{"panic", &stubSource{panic: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := clockwork.NewFakeClock()
			pusher := testutil.NewMockPusher(0)
			p := New(tt.source, pusher, WithClock(clock))
			defer func() { _ = p.Close() }()

			_ = p.Start(context.Background())
			advance(t, clock, DefaultInterval)

			deadline := time.Now().Add(2 * time.Second)
			for p.Err() == nil && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			if p.Err() == nil {
				t.Fatal("fault was not recorded")
			}
			if p.State() != StateRunning {
				t.Errorf("State = %s, want running", p.State())
			}
			if pusher.Count() != 0 {
				t.Errorf("pushed %d events", pusher.Count())
			}
		})
	}
}

func TestPublisher_StartAfterClose(t *testing.T) {
	p := New(&stubSource{value: 101}, testutil.NewMockPusher(0), WithClock(clockwork.NewFakeClock()))
	_ = p.Start(context.Background())

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := p.Start(context.Background()); !errors.Is(err, domain.ErrAlreadyDisposed) {
		t.Errorf("Start() after Close error = %v, want ErrAlreadyDisposed", err)
	}
}

func TestPublisher_ParentContextCancelsLoop(t *testing.T) {
	pusher := testutil.NewMockPusher(0)
	p := New(&stubSource{value: 101}, pusher, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	_ = p.Start(ctx)
	waitForPush(t, pusher)
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateStopped:  "stopped",
		StateStarting: "starting",
		StateRunning:  "running",
		StateStopping: "stopping",
		State(9):      "state(9)",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), want)
		}
	}
}
