// Package poller runs chain synchronization passes on an interval and
// publishes the resulting adapter state.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flow-hydraulics/wallet-orchestrator/adapters"
	"github.com/flow-hydraulics/wallet-orchestrator/events"
	"github.com/jpillora/backoff"
	log "github.com/sirupsen/logrus"
)

var ErrStopped = errors.New("poller stopped")

// SyncFunc performs one synchronization pass. It must return when ctx is
// cancelled.
type SyncFunc func(ctx context.Context) error

// Poller calls its SyncFunc once on start, then every interval and on
// refresh. Failed passes are retried with an exponential backoff.
type Poller struct {
	name       string
	sync       SyncFunc
	interval   time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration
	retryable  func(error) bool
	onState    func(adapters.State)
	logger     *log.Logger

	mu      sync.Mutex
	state   adapters.State
	feed    events.Feed[adapters.State]
	stopped bool

	refresh   chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func New(name string, fn SyncFunc, opts ...Option) *Poller {
	p := &Poller{
		name:       name,
		sync:       fn,
		interval:   30 * time.Second,
		minBackoff: time.Second,
		maxBackoff: 5 * time.Minute,
		state:      adapters.Syncing(nil, nil),
		refresh:    make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = log.StandardLogger()
	}

	return p
}

func (p *Poller) Start() {
	p.startOnce.Do(func() {
		var ctx context.Context
		ctx, p.cancel = context.WithCancel(context.Background())

		p.wg.Add(1)
		go p.run(ctx)
	})
}

// Stop cancels an in-flight pass and waits for the poller to exit.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
		p.feed.Close()
	})
}

// Refresh requests a pass. It does not wait for the pass to run.
func (p *Poller) Refresh(ctx context.Context) error {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	select {
	case p.refresh <- struct{}{}:
	default:
		// A refresh is already pending
	}
	return nil
}

func (p *Poller) State() adapters.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe delivers the current state first, then every change.
func (p *Poller) Subscribe() *events.Subscription[adapters.State] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feed.SubscribeFrom(p.state)
}

// setState is only called from the run goroutine, so hooks observe states
// in order.
func (p *Poller) setState(s adapters.State) {
	p.mu.Lock()
	if p.state.Equal(s) {
		p.mu.Unlock()
		return
	}
	p.state = s
	p.feed.Send(s)
	p.mu.Unlock()

	if p.onState != nil {
		p.onState(s)
	}
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	b := &backoff.Backoff{
		Min:    p.minBackoff,
		Max:    p.maxBackoff,
		Factor: 2,
		Jitter: true,
	}

	showSyncing := true
	for {
		if showSyncing {
			p.setState(adapters.Syncing(nil, nil))
		}

		wait := p.interval
		if err := p.sync(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			if p.retryable == nil || p.retryable(err) {
				wait = b.Duration()
			}
			p.logger.
				WithFields(log.Fields{"adapter": p.name, "error": err, "retryIn": wait}).
				Warn("Sync failed")
			p.setState(adapters.NotSynced(err))
		} else {
			b.Reset()
			p.setState(adapters.Synced())
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			showSyncing = false
		case <-p.refresh:
			timer.Stop()
			showSyncing = true
		}
	}
}
