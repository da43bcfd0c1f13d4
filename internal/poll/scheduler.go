// Package poll runs the periodic fetches for entities without reliable push
// coverage. Every interval in the client is owned here, under a named
// policy, so poll lifetimes end with their owner and cannot leak across
// navigation.
package poll

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/moimapp/moim/internal/bus"
)

// Kind classifies a policy's result handling.
type Kind string

const (
	// FullReplace polls fetch a whole collection; the result entirely
	// supersedes the corresponding store slice.
	FullReplace Kind = "full-replace"
	// Heartbeat polls are fire-and-forget liveness signals. Failure is
	// logged, never surfaced, never retried mid-interval.
	Heartbeat Kind = "heartbeat"
)

// nudgePrefix is the bus namespace for early-run requests. An event of kind
// nudgePrefix+name triggers the policy of that name without waiting out its
// interval.
const nudgePrefix = "poll.nudge."

// Policy is one named periodic fetch.
type Policy struct {
	Name     string
	Kind     Kind
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives a set of policies. Start both fires every policy once
// immediately and then keeps it on its interval; Stop halts all of them
// synchronously.
type Scheduler struct {
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler listening for nudges on b.
func New(b *bus.Bus, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{bus: b, logger: logger}
}

// Start launches one loop per policy.
func (s *Scheduler) Start(ctx context.Context, policies []Policy) {
	ctx, s.cancel = context.WithCancel(ctx)

	nudges := make(map[string]chan struct{}, len(policies))
	for _, p := range policies {
		nudges[p.Name] = make(chan struct{}, 1)
	}

	ch, unsub := s.bus.Subscribe(nudgePrefix, 16)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer unsub()
		for {
			select {
			case evt := <-ch:
				name := strings.TrimPrefix(evt.Kind, nudgePrefix)
				if nc, ok := nudges[name]; ok {
					select {
					case nc <- struct{}{}:
					default: // a nudge is already pending
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	for _, p := range policies {
		s.wg.Add(1)
		go s.loop(ctx, p, nudges[p.Name])
	}
}

// Stop cancels all policy loops and waits for them to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, p Policy, nudge <-chan struct{}) {
	defer s.wg.Done()

	s.runOnce(ctx, p)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, p)
		case <-nudge:
			s.runOnce(ctx, p)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, p Policy) {
	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("poll failed",
			zap.String("policy", p.Name),
			zap.String("kind", string(p.Kind)),
			zap.Error(err))
	}
}
