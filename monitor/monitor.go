// Package monitor polls instrument features at a fixed interval and
// broadcasts value changes, so a UI or a logging pipeline can follow an
// experiment without driving the instruments itself.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LabPy/lantz-core/logger"
)

// FeatureReader is the slice of a driver the monitor needs. *driver.Core
// and everything embedding it satisfy it.
type FeatureReader interface {
	Name() string
	GetFeat(ctx context.Context, name string) (any, error)
}

// Update reports one observed feature value.
type Update struct {
	Driver    string `json:"driver"`
	Feature   string `json:"feature"`
	Value     any    `json:"value,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type target struct {
	reader  FeatureReader
	feature string
}

// Monitor polls a set of features through one worker goroutine and
// publishes changes to its subscribers.
type Monitor struct {
	interval time.Duration
	log      *zap.SugaredLogger

	mu      sync.Mutex
	targets []target
	last    map[string]string
	subs    map[chan Update]struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a monitor polling at the given interval.
func New(interval time.Duration) *Monitor {
	return &Monitor{
		interval: interval,
		log:      logger.Named("monitor"),
		last:     make(map[string]string),
		subs:     make(map[chan Update]struct{}),
	}
}

// Watch adds features of a driver to the polled set.
func (m *Monitor) Watch(reader FeatureReader, features ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range features {
		m.targets = append(m.targets, target{reader: reader, feature: f})
	}
}

// Subscribe returns a channel receiving updates. Slow subscribers miss
// updates rather than stall the poller.
func (m *Monitor) Subscribe() chan Update {
	ch := make(chan Update, 16)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel. The close
// happens under the same lock publish sends under, so a concurrent
// publish can never hit a closed channel.
func (m *Monitor) Unsubscribe(ch chan Update) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(ch)
	}
}

// Start launches the polling worker. Stop or cancelling ctx ends it.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.pollOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				m.log.Debugw("Monitor stopping")
				return
			case <-ticker.C:
				m.pollOnce(ctx)
			}
		}
	}()
}

// Stop ends the polling worker and waits for it.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// pollOnce reads every watched feature and publishes the ones whose
// value changed since the previous poll.
func (m *Monitor) pollOnce(ctx context.Context) {
	m.mu.Lock()
	targets := make([]target, len(m.targets))
	copy(targets, m.targets)
	m.mu.Unlock()

	for _, t := range targets {
		if ctx.Err() != nil {
			return
		}
		value, err := t.reader.GetFeat(ctx, t.feature)
		update := Update{
			Driver:    t.reader.Name(),
			Feature:   t.feature,
			Timestamp: time.Now().Unix(),
		}
		if err != nil {
			m.log.Warnw("Feature poll failed",
				"driver", t.reader.Name(),
				"feature", t.feature,
				"error", err)
			update.Error = err.Error()
		} else {
			update.Value = value
		}

		key := t.reader.Name() + "." + t.feature
		repr := fmt.Sprintf("%v|%s", update.Value, update.Error)
		m.mu.Lock()
		changed := m.last[key] != repr
		m.last[key] = repr
		m.mu.Unlock()

		if changed {
			m.publish(update)
		}
	}
}

// publish hands the update to every subscriber, dropping it for the
// ones whose channel is full. Sends are non-blocking and run under the
// lock, serialized against Unsubscribe's close.
func (m *Monitor) publish(u Update) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
