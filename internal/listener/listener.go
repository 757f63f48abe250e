package listener

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strefethen/victrola-bridge/internal/registry"
	"github.com/strefethen/victrola-bridge/internal/state"
	"github.com/strefethen/victrola-bridge/internal/victrola"
)

// connState tracks where the listener is in its subscribe/poll lifecycle.
type connState int

const (
	stateDisconnected connState = iota
	stateSubscribed
	stateStopped
)

func (s connState) String() string {
	switch s {
	case stateDisconnected:
		return "disconnected"
	case stateSubscribed:
		return "subscribed"
	case stateStopped:
		return "stopped"
	}
	return "unknown"
}

// deviceAPI is the slice of the device client the listener needs.
type deviceAPI interface {
	SubscribeQueue(ctx context.Context, queueID string, subs []victrola.EventSubscription) error
	UnsubscribeQueue(ctx context.Context, queueID string, subs []victrola.EventSubscription) error
	PollEvents(ctx context.Context, queueID string, pollTimeout time.Duration) ([]victrola.Event, error)
	GetUIState(ctx context.Context) (victrola.UIState, error)
}

// Listener runs the device's long-poll event queue and applies incoming
// changes to the shadow and registry. It fills the gap between reconcile
// cycles, typically delivering changes within the poll timeout.
type Listener struct {
	device   deviceAPI
	shadow   *state.Shadow
	registry *registry.Registry

	pollTimeout    time.Duration
	reconnectDelay time.Duration
	maxFailures    int

	mu       sync.Mutex
	state    connState
	queueID  string
	failures int

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped listener.
func New(device deviceAPI, shadow *state.Shadow, reg *registry.Registry,
	pollTimeout, reconnectDelay time.Duration, maxFailures int) *Listener {
	return &Listener{
		device:         device,
		shadow:         shadow,
		registry:       reg,
		pollTimeout:    pollTimeout,
		reconnectDelay: reconnectDelay,
		maxFailures:    maxFailures,
		state:          stateDisconnected,
	}
}

// Start launches the subscribe/poll loop in a goroutine.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.done != nil {
		l.mu.Unlock()
		return fmt.Errorf("listener already started")
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	l.mu.Unlock()

	go l.run(ctx)
	log.Printf("LISTENER: started, poll timeout %s", l.pollTimeout)
	return nil
}

// Stop cancels the loop and unsubscribes the queue best-effort. Safe to call
// once; blocks until the loop goroutine exits.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	done := l.done
	queueID := l.queueID
	subscribed := l.state == stateSubscribed
	l.setStateLocked(stateStopped)
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	if subscribed && queueID != "" {
		ctx, cancelUnsub := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancelUnsub()
		if err := l.device.UnsubscribeQueue(ctx, queueID, victrola.EventSubscriptions); err != nil {
			log.Printf("LISTENER: unsubscribe failed: %v", err)
		}
	}
	log.Printf("LISTENER: stopped")
}

// State returns the current lifecycle state name, for health reporting.
func (l *Listener) State() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.String()
}

func (l *Listener) setStateLocked(next connState) {
	if l.state == stateStopped {
		return
	}
	l.state = next
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)

	for {
		if ctx.Err() != nil {
			return
		}

		if err := l.subscribe(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.backoff(ctx, err)
			continue
		}

		if err := l.pollLoop(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.backoff(ctx, err)
		}
	}
}

func (l *Listener) subscribe(ctx context.Context) error {
	queueID := fmt.Sprintf("{%s}", uuid.New().String())

	if err := l.device.SubscribeQueue(ctx, queueID, victrola.EventSubscriptions); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	l.mu.Lock()
	l.queueID = queueID
	l.failures = 0
	l.setStateLocked(stateSubscribed)
	l.mu.Unlock()

	log.Printf("LISTENER: subscribed, queue %s", queueID)
	return nil
}

func (l *Listener) pollLoop(ctx context.Context) error {
	l.mu.Lock()
	queueID := l.queueID
	l.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return nil
		}

		events, err := l.device.PollEvents(ctx, queueID, l.pollTimeout)
		if err != nil {
			l.mu.Lock()
			l.setStateLocked(stateDisconnected)
			l.mu.Unlock()
			if errors.Is(err, victrola.ErrQueueExpired) {
				log.Printf("LISTENER: queue expired, resubscribing")
				return nil
			}
			return fmt.Errorf("poll: %w", err)
		}

		if len(events) > 0 {
			if changed := l.apply(ctx, events); changed {
				l.shadow.Notify()
			}
		}
	}
}

// BackoffDelay returns the reconnect delay for a given consecutive-failure
// count: base delay scaled by the count, capped at maxFailures multiples.
func BackoffDelay(base time.Duration, failures, maxFailures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	if failures > maxFailures {
		failures = maxFailures
	}
	return base * time.Duration(failures)
}

func (l *Listener) backoff(ctx context.Context, err error) {
	l.mu.Lock()
	l.failures++
	failures := l.failures
	l.setStateLocked(stateDisconnected)
	l.mu.Unlock()

	delay := BackoffDelay(l.reconnectDelay, failures, l.maxFailures)
	log.Printf("LISTENER: %v (failure %d), reconnecting in %s", err, failures, delay)

	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
