package adapters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flow-hydraulics/wallet-orchestrator/assets"
	"github.com/flow-hydraulics/wallet-orchestrator/events"
	"github.com/flow-hydraulics/wallet-orchestrator/jobs"
	"github.com/flow-hydraulics/wallet-orchestrator/wallets"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
)

const (
	ConstructJobType = "construct_adapter"
	RefreshJobType   = "refresh_adapter"
)

// WalletSource provides the active wallet set. The first value delivered
// by the subscription is the current set.
type WalletSource interface {
	SubscribeActiveWallets() *events.Subscription[[]wallets.Wallet]
}

// StateEvent reports a state change of a wallet's adapter. Removed is set
// when the wallet left the active set and its state was dropped.
type StateEvent struct {
	Wallet  wallets.Wallet
	State   State
	Removed bool
}

type entry struct {
	wallet  wallets.Wallet
	adapter Adapter // nil when construction failed

	cancel context.CancelFunc
	done   chan struct{}
}

type constructTask struct {
	ctx    context.Context
	wallet wallets.Wallet
}

type refreshTask struct {
	wallet  wallets.Wallet
	adapter Adapter
}

// Manager owns exactly one adapter per wallet of the active set.
//
// The pool is reconciled by a single goroutine that consumes the active
// wallet sets in the order they were produced. Passes never overlap, so
// two adapters are never constructed for the same wallet.
type Manager struct {
	source     WalletSource
	factory    Factory
	pool       *jobs.WorkerPool
	limiter    ratelimit.Limiter
	logger     *log.Logger
	registerer prometheus.Registerer
	metrics    *metrics
	tracer     trace.Tracer

	mu        sync.RWMutex
	entries   map[wallets.Key]*entry
	active    []wallets.Wallet
	populated bool
	states    map[wallets.Key]State
	settled   map[wallets.Key]bool
	stateFeed events.Feed[StateEvent]
	ready     *events.Value[bool]

	retries events.Feed[wallets.Wallet]

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewManager(source WalletSource, factory Factory, pool *jobs.WorkerPool, opts ...ManagerOption) *Manager {
	m := &Manager{
		source:  source,
		factory: factory,
		pool:    pool,
		entries: make(map[wallets.Key]*entry),
		states:  make(map[wallets.Key]State),
		settled: make(map[wallets.Key]bool),
		ready:   events.NewValue(false),
		tracer:  otel.Tracer("adapters"),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = log.StandardLogger()
	}
	if m.limiter == nil {
		m.limiter = ratelimit.NewUnlimited()
	}
	m.metrics = newMetrics(m.registerer)

	pool.RegisterExecutor(ConstructJobType, m.executeConstruct)
	pool.RegisterExecutor(RefreshJobType, m.executeRefresh)

	return m
}

// Start begins following the active wallet set. Calling Start more than
// once has no effect.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		ctx, m.cancel = context.WithCancel(ctx)

		sets := m.source.SubscribeActiveWallets()
		retries := m.retries.Subscribe()

		m.wg.Add(1)
		go m.run(ctx, sets, retries)

		m.logger.Info("Adapter manager started")
	})
}

// Stop disposes every adapter and ends all subscriptions.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		m.wg.Wait()

		m.retries.Close()
		m.stateFeed.Close()
		m.ready.Close()

		m.logger.Info("Adapter manager stopped")
	})
}

func (m *Manager) run(
	ctx context.Context,
	sets *events.Subscription[[]wallets.Wallet],
	retries *events.Subscription[wallets.Wallet],
) {
	defer m.wg.Done()
	defer m.disposeAll()
	defer sets.Unsubscribe()
	defer retries.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ww, ok := <-sets.C():
			if !ok {
				return
			}
			m.reconcile(ctx, ww)
		case w, ok := <-retries.C():
			if !ok {
				return
			}
			m.retry(ctx, w)
		}
	}
}

// reconcile aligns the pool with next. Disposals complete before any
// construction starts.
func (m *Manager) reconcile(ctx context.Context, next []wallets.Wallet) {
	start := time.Now()

	ctx, span := m.tracer.Start(ctx, "adapters.reconcile")
	defer span.End()

	nextKeys := make(map[wallets.Key]wallets.Wallet, len(next))
	for _, w := range next {
		nextKeys[w.Key()] = w
	}

	m.mu.Lock()
	var removed []*entry
	for k, e := range m.entries {
		w, ok := nextKeys[k]
		if !ok {
			removed = append(removed, e)
			delete(m.entries, k)
			delete(m.states, k)
			delete(m.settled, k)
			m.stateFeed.Send(StateEvent{Wallet: e.wallet, Removed: true})
			continue
		}
		e.wallet = w
	}
	var added []wallets.Wallet
	for _, w := range next {
		if _, ok := m.entries[w.Key()]; !ok {
			added = append(added, w)
		}
	}
	m.active = append([]wallets.Wallet(nil), next...)
	m.populated = true
	m.updateLocked()
	m.mu.Unlock()

	m.logger.
		WithFields(log.Fields{"added": len(added), "removed": len(removed), "active": len(next)}).
		Debug("Reconciling adapters")

	m.dispose(removed)
	m.constructAll(ctx, added)

	span.SetAttributes(
		attribute.Int("added", len(added)),
		attribute.Int("removed", len(removed)),
	)
	m.metrics.reconciliation.Observe(time.Since(start).Seconds())
}

// retry constructs the adapter of w again if w is active and its previous
// construction failed.
func (m *Manager) retry(ctx context.Context, w wallets.Wallet) {
	key := w.Key()

	m.mu.Lock()
	var target *wallets.Wallet
	for i := range m.active {
		if m.active[i].Key() == key {
			target = &m.active[i]
			break
		}
	}
	if e, ok := m.entries[key]; target == nil || (ok && e.adapter != nil) {
		m.mu.Unlock()
		return
	}
	delete(m.entries, key)
	delete(m.settled, key)
	m.updateLocked()
	retried := *target
	m.mu.Unlock()

	m.logger.WithFields(log.Fields{"wallet": key}).Info("Retrying adapter construction")

	m.constructAll(ctx, []wallets.Wallet{retried})
}

func (m *Manager) dispose(ee []*entry) {
	var g errgroup.Group
	for _, e := range ee {
		e := e
		g.Go(func() error {
			if e.cancel != nil {
				e.cancel()
				<-e.done
			}
			if e.adapter != nil {
				e.adapter.Stop()
			}
			m.logger.WithFields(log.Fields{"wallet": e.wallet.Key()}).Debug("Adapter disposed")
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Manager) disposeAll() {
	m.mu.Lock()
	ee := make([]*entry, 0, len(m.entries))
	for k, e := range m.entries {
		ee = append(ee, e)
		delete(m.entries, k)
	}
	m.states = make(map[wallets.Key]State)
	m.settled = make(map[wallets.Key]bool)
	m.active = nil
	m.populated = false
	m.updateLocked()
	m.mu.Unlock()

	m.dispose(ee)
}

// constructAll constructs the adapters of ww on the worker pool and waits
// until every construction has finished. Each adapter is installed as soon
// as it is ready.
func (m *Manager) constructAll(ctx context.Context, ww []wallets.Wallet) {
	scheduled := make([]*jobs.Job, 0, len(ww))
	for _, w := range ww {
		task := &constructTask{ctx: ctx, wallet: w}
		j, err := m.pool.Run(ConstructJobType, w.String(), task)
		if err != nil {
			m.logger.
				WithFields(log.Fields{"wallet": w.Key(), "error": err}).
				Warn("Could not schedule adapter construction, constructing inline")
			a, cerr := m.construct(ctx, w)
			m.install(w, a, cerr)
			continue
		}
		scheduled = append(scheduled, j)
	}

	for _, j := range scheduled {
		<-j.Done()
		// The pool skips jobs once it is stopping
		if state, msg := j.Snapshot(); state != jobs.Complete {
			task := j.Payload.(*constructTask)
			m.install(task.wallet, nil, fmt.Errorf("adapter construction %s: %s", state, msg))
		}
	}
}

func (m *Manager) executeConstruct(_ context.Context, j *jobs.Job) error {
	task, ok := j.Payload.(*constructTask)
	if !ok {
		return jobs.PermanentFailure(fmt.Errorf("unexpected payload %T", j.Payload))
	}
	a, err := m.construct(task.ctx, task.wallet)
	m.install(task.wallet, a, err)
	return nil
}

func (m *Manager) construct(ctx context.Context, w wallets.Wallet) (a Adapter, err error) {
	defer func() {
		if r := recover(); r != nil {
			a, err = nil, fmt.Errorf("adapter construction panicked: %v", r)
		}
	}()

	a, err = m.factory.Create(ctx, w)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("no adapter for %s", w)
	}
	if err := a.Start(); err != nil {
		a.Stop()
		return nil, err
	}
	return a, nil
}

// install records the result of a construction. A failed construction is
// reported as NotSynced and is not retried.
func (m *Manager) install(w wallets.Wallet, a Adapter, err error) {
	key := w.Key()
	e := &entry{wallet: w, adapter: a}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = e

	if err != nil {
		m.logger.
			WithFields(log.Fields{"wallet": key, "blockchain": w.Blockchain(), "error": err}).
			Warn("Could not construct adapter")
		m.metrics.constructionFailures.WithLabelValues(string(w.Blockchain())).Inc()
		m.setStateLocked(key, e, NotSynced(err))
		return
	}

	m.logger.WithFields(log.Fields{"wallet": key, "blockchain": w.Blockchain()}).Debug("Adapter constructed")

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})

	caps := a.Capabilities()
	switch {
	case caps.Balance != nil:
		sub := caps.Balance.SubscribeBalance()
		// Settles with the first reported state
		m.recordStateLocked(key, e, caps.Balance.BalanceState())
		go relay(ctx, m, key, e, sub, func(be BalanceEvent) State {
			return be.State
		})
	case caps.Transactions != nil:
		go relay(ctx, m, key, e, caps.Transactions.SubscribeTransactionsState(), func(s State) State {
			return s
		})
	default:
		// Nothing to relay
		close(e.done)
		m.settled[key] = true
	}
	m.updateLocked()
}

func relay[T any](ctx context.Context, m *Manager, key wallets.Key, e *entry, sub *events.Subscription[T], state func(T) State) {
	defer close(e.done)
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-sub.C():
			if !ok {
				return
			}
			m.mu.Lock()
			m.setStateLocked(key, e, state(v))
			m.mu.Unlock()
		}
	}
}

// setStateLocked must be called with m.mu held. Reports of adapters that
// are no longer in the pool are ignored.
func (m *Manager) setStateLocked(key wallets.Key, e *entry, s State) {
	if m.entries[key] != e {
		return
	}

	m.settled[key] = true
	m.recordStateLocked(key, e, s)
	m.updateLocked()
}

// recordStateLocked must be called with m.mu held.
func (m *Manager) recordStateLocked(key wallets.Key, e *entry, s State) {
	if prev, ok := m.states[key]; !ok || !prev.Equal(s) {
		m.states[key] = s
		m.stateFeed.Send(StateEvent{Wallet: e.wallet, State: s})
	}
}

// updateLocked must be called with m.mu held.
func (m *Manager) updateLocked() {
	ready := m.populated
	for _, w := range m.active {
		if !m.settled[w.Key()] {
			ready = false
			break
		}
	}
	m.ready.Set(ready)

	live := 0
	for _, e := range m.entries {
		if e.adapter != nil {
			live++
		}
	}
	m.metrics.active.Set(float64(live))
	m.metrics.observeStates(m.states)
}

// Refresh requests every live adapter to synchronize again. It does not
// block; completion is observed through state changes.
func (m *Manager) Refresh() {
	m.mu.RLock()
	tasks := make([]refreshTask, 0, len(m.entries))
	for _, e := range m.entries {
		if e.adapter != nil {
			tasks = append(tasks, refreshTask{wallet: e.wallet, adapter: e.adapter})
		}
	}
	m.mu.RUnlock()

	for i := range tasks {
		m.scheduleRefresh(&tasks[i])
	}
}

// RefreshByWallet refreshes the adapter of w, or retries its construction
// if there is none.
func (m *Manager) RefreshByWallet(w wallets.Wallet) {
	m.mu.RLock()
	e, ok := m.entries[w.Key()]
	m.mu.RUnlock()

	if ok && e.adapter != nil {
		m.scheduleRefresh(&refreshTask{wallet: e.wallet, adapter: e.adapter})
		return
	}

	m.retries.Send(w)
}

func (m *Manager) scheduleRefresh(task *refreshTask) {
	if _, err := m.pool.Run(RefreshJobType, task.wallet.String(), task); err != nil {
		m.logger.
			WithFields(log.Fields{"wallet": task.wallet.Key(), "error": err}).
			Warn("Could not schedule adapter refresh")
	}
}

func (m *Manager) executeRefresh(ctx context.Context, j *jobs.Job) error {
	task, ok := j.Payload.(*refreshTask)
	if !ok {
		return jobs.PermanentFailure(fmt.Errorf("unexpected payload %T", j.Payload))
	}
	m.limiter.Take()
	return task.adapter.Refresh(ctx)
}

func (m *Manager) lookup(key wallets.Key) Adapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[key]; ok {
		return e.adapter
	}
	return nil
}

// Adapter returns the live adapter of w.
func (m *Manager) Adapter(w wallets.Wallet) (Adapter, bool) {
	a := m.lookup(w.Key())
	return a, a != nil
}

// AdapterForToken returns the live adapter of the active wallet of token.
func (m *Manager) AdapterForToken(token assets.Token) (Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.active {
		if w.Token.Query != token.Query {
			continue
		}
		if e, ok := m.entries[w.Key()]; ok && e.adapter != nil {
			return e.adapter, true
		}
		return nil, false
	}
	return nil, false
}

func (m *Manager) BalanceAdapter(w wallets.Wallet) (BalanceAdapter, bool) {
	if a := m.lookup(w.Key()); a != nil {
		b := a.Capabilities().Balance
		return b, b != nil
	}
	return nil, false
}

func (m *Manager) ReceiveAdapter(w wallets.Wallet) (ReceiveAdapter, bool) {
	if a := m.lookup(w.Key()); a != nil {
		r := a.Capabilities().Receive
		return r, r != nil
	}
	return nil, false
}

func (m *Manager) TransactionsAdapter(w wallets.Wallet) (TransactionsAdapter, bool) {
	if a := m.lookup(w.Key()); a != nil {
		t := a.Capabilities().Transactions
		return t, t != nil
	}
	return nil, false
}

// Wallet returns the pooled wallet with the given key.
func (m *Manager) Wallet(key wallets.Key) (wallets.Wallet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[key]; ok {
		return e.wallet, true
	}
	return wallets.Wallet{}, false
}

// Wallets returns the wallets currently in the pool, including those whose
// construction failed.
func (m *Manager) Wallets() []wallets.Wallet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ww := make([]wallets.Wallet, 0, len(m.entries))
	for _, e := range m.entries {
		ww = append(ww, e.wallet)
	}
	return ww
}

func (m *Manager) State(w wallets.Wallet) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[w.Key()]
	return s, ok
}

func (m *Manager) States() map[wallets.Key]State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	states := make(map[wallets.Key]State, len(m.states))
	for k, s := range m.states {
		states[k] = s
	}
	return states
}

// SubscribeStates delivers state changes of all adapters. Changes of one
// wallet arrive in the order the adapter reported them.
func (m *Manager) SubscribeStates() *events.Subscription[StateEvent] {
	return m.stateFeed.Subscribe()
}

// Ready reports whether every adapter of the active set was constructed
// and reported its first state.
func (m *Manager) Ready() bool {
	return m.ready.Get()
}

// SubscribeReady delivers the current readiness first, then every change.
func (m *Manager) SubscribeReady() *events.Subscription[bool] {
	return m.ready.Subscribe()
}

// DebugInfo returns the debug info of every live adapter keyed by wallet.
func (m *Manager) DebugInfo() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info := make(map[string]string, len(m.entries))
	for k, e := range m.entries {
		if e.adapter != nil {
			info[k.String()] = e.adapter.DebugInfo()
		} else if s, ok := m.states[k]; ok {
			info[k.String()] = s.String()
		}
	}
	return info
}
