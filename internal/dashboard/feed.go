package dashboard

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/pipetop/internal/api"
	perrors "github.com/rileyhilliard/pipetop/internal/errors"
	"github.com/rileyhilliard/pipetop/internal/events"
	"github.com/rileyhilliard/pipetop/internal/logger"
	"github.com/rileyhilliard/pipetop/internal/topology"
)

// Backoff bounds for re-opening a dropped subscription.
const (
	minReconnectBackoff = 250 * time.Millisecond
	maxReconnectBackoff = 10 * time.Second
)

// poller polls the full component listing every interval.
type poller struct {
	transport Transport
	interval  time.Duration
	timeout   time.Duration
	lostAfter int
	refresh   <-chan struct{}
	log       logger.Logger

	// known holds the stage names of the last successful listing.
	known    map[string]struct{}
	failures int
	lost     bool
}

func newPoller(t Transport, cfg Config, seed []topology.Row, refresh <-chan struct{}, log logger.Logger) *poller {
	known := make(map[string]struct{}, len(seed))
	for _, r := range seed {
		known[r.Name] = struct{}{}
	}
	return &poller{
		transport: t,
		interval:  cfg.RefreshInterval,
		timeout:   cfg.Timeout,
		lostAfter: cfg.LostAfter,
		refresh:   refresh,
		log:       log,
		known:     known,
	}
}

func (p *poller) run(ctx context.Context, emit events.Emitter) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-p.refresh:
			p.log.Debug("forced refresh")
		}
		if !p.poll(ctx, emit) {
			return nil
		}
	}
}

// poll runs one refresh and emits its outcome. It returns false once the
// multiplexer stops accepting events.
func (p *poller) poll(ctx context.Context, emit events.Emitter) bool {
	qctx, cancel := context.WithTimeout(ctx, p.timeout)
	updates, err := p.transport.Metrics(qctx)
	cancel()
	if ctx.Err() != nil {
		return false
	}

	if err != nil {
		p.failures++
		p.log.Warn("refresh failed (%d in a row): %v", p.failures, err)
		if !emit(ctx, events.RefreshFailed(perrors.WrapWithCode(err, perrors.ErrRefresh, "refresh failed", ""))) {
			return false
		}
		if p.failures == p.lostAfter {
			p.lost = true
			lost := perrors.WrapWithCode(err, perrors.ErrConnLost,
				fmt.Sprintf("connection lost after %d failed refreshes", p.failures), "")
			return emit(ctx, events.ConnectionLost(lost))
		}
		return true
	}

	p.failures = 0
	if p.lost {
		p.lost = false
		p.log.Info("connection restored")
		if !emit(ctx, events.ConnectionRestored()) {
			return false
		}
	}

	if !emit(ctx, events.MetricUpdate(updates)) {
		return false
	}

	if removed := p.diff(updates); len(removed) > 0 {
		p.log.Info("stages removed: %v", removed)
		return emit(ctx, events.TopologyChanged(removed))
	}
	return true
}

// diff returns known stages missing from a full listing and remembers the
// listing for the next poll.
func (p *poller) diff(updates []topology.Update) []string {
	seen := make(map[string]struct{}, len(updates))
	for _, u := range updates {
		seen[u.Name] = struct{}{}
	}
	var removed []string
	for name := range p.known {
		if _, ok := seen[name]; !ok {
			removed = append(removed, name)
		}
	}
	p.known = seen
	sort.Strings(removed)
	return removed
}

// subscriber keeps a metrics subscription open, reconnecting with capped
// exponential backoff.
type subscriber struct {
	transport Transport
	interval  time.Duration
	// stall is how long a subscription may go without a batch before it is
	// dropped and reopened.
	stall time.Duration
	log   logger.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

func newSubscriber(t Transport, cfg Config, log logger.Logger) *subscriber {
	return &subscriber{
		transport:  t,
		interval:   cfg.RefreshInterval,
		stall:      cfg.Timeout + cfg.RefreshInterval,
		log:        log,
		minBackoff: minReconnectBackoff,
		maxBackoff: maxReconnectBackoff,
	}
}

func (s *subscriber) run(ctx context.Context, emit events.Emitter) error {
	backoff := s.minBackoff
	lost := false

	for {
		delivered := false
		subCtx, cancel := context.WithCancel(ctx)
		var stalled atomic.Bool
		watchdog := time.AfterFunc(s.stall, func() {
			stalled.Store(true)
			cancel()
		})
		err := s.transport.Subscribe(subCtx, s.interval, func(b api.Batch) {
			watchdog.Reset(s.stall)
			if !delivered {
				delivered = true
				backoff = s.minBackoff
				if lost {
					lost = false
					s.log.Info("subscription restored")
					emit(ctx, events.ConnectionRestored())
				}
			}
			if len(b.Updates) > 0 {
				emit(ctx, events.MetricUpdate(b.Updates))
			}
			if len(b.Removed) > 0 {
				emit(ctx, events.TopologyChanged(b.Removed))
			}
		})
		watchdog.Stop()
		cancel()
		if ctx.Err() != nil {
			return nil
		}
		if stalled.Load() {
			err = fmt.Errorf("no metrics received for %s", s.stall)
		}

		s.log.Warn("subscription ended: %v (retrying in %s)", err, backoff)
		if !lost {
			lost = true
			wrapped := perrors.WrapWithCode(err, perrors.ErrConnLost, "metrics subscription lost", "")
			if !emit(ctx, events.ConnectionLost(wrapped)) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}
