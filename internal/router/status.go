// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"time"

	"github.com/rs/zerolog"
)

// Status is a progress notification emitted while routing.
type Status string

const (
	StatusCloudProcessing          Status = "cloud_processing"
	StatusLocalStarting            Status = "local_starting"
	StatusAPIFetching              Status = "api_fetching"
	StatusLocalUncertainEscalating Status = "local_uncertain_escalating"
	StatusLocalFailedFallingBack   Status = "local_failed_falling_back"
)

// statusQueueSize bounds notifications waiting for a slow observer.
const statusQueueSize = 16

// notifier delivers statuses in order on its own goroutine. A nil notifier
// drops everything.
type notifier struct {
	queue chan Status
	done  chan struct{}
	log   zerolog.Logger
}

func newNotifier(observer func(Status), log zerolog.Logger) *notifier {
	if observer == nil {
		return nil
	}
	n := &notifier{
		queue: make(chan Status, statusQueueSize),
		done:  make(chan struct{}),
		log:   log,
	}
	go n.run(observer)
	return n
}

func (n *notifier) run(observer func(Status)) {
	defer close(n.done)
	for s := range n.queue {
		n.deliver(observer, s)
	}
}

func (n *notifier) deliver(observer func(Status), s Status) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Warn().Interface("panic", r).Str("status", string(s)).Msg("status observer panicked")
		}
	}()
	observer(s)
}

// emit queues s without blocking; a full queue drops it.
func (n *notifier) emit(s Status) {
	if n == nil {
		return
	}
	select {
	case n.queue <- s:
	default:
		n.log.Debug().Str("status", string(s)).Msg("status dropped, observer is behind")
	}
}

// close stops accepting statuses. Queued ones are still delivered; close
// waits up to wait for the observer to drain them, and not at all when wait
// is zero.
func (n *notifier) close(wait time.Duration) {
	if n == nil {
		return
	}
	close(n.queue)
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-n.done:
	case <-timer.C:
		n.log.Debug().Dur("wait", wait).Msg("status observer still draining")
	}
}
