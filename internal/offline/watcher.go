package offline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type connState int

const (
	stateUnknown connState = iota
	stateOnline
	stateOffline
)

// Pinger probes the API
type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher probes the API and calls onOnline on every offline to online transition
type Watcher struct {
	pinger   Pinger
	logger   *zap.Logger
	interval time.Duration
	timeout  time.Duration
	onOnline func()
	state    connState
}

// NewWatcher creates a Watcher probing every interval
func NewWatcher(pinger Pinger, logger *zap.Logger, interval time.Duration, onOnline func()) *Watcher {
	timeout := interval / 2
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Watcher{
		pinger:   pinger,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
		onOnline: onOnline,
	}
}

// Probe runs one health check and reports whether the API answered
func (w *Watcher) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	err := w.pinger.Ping(probeCtx)
	online := err == nil

	previous := w.state
	if online {
		w.state = stateOnline
	} else {
		w.state = stateOffline
	}

	switch {
	case online && previous == stateOffline:
		w.logger.Info("API reachable again, triggering sync")
		if w.onOnline != nil {
			w.onOnline()
		}
	case !online && previous != stateOffline:
		w.logger.Warn("API unreachable, sales will be queued", zap.Error(err))
	}
	return online
}

// Run probes until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Probe(ctx)
		}
	}
}
