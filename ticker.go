// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

package mqtt

import (
	"sync"
	"time"
)

// ticker emits at keepalive intervals unless reset by outbound activity, so
// a tick only occurs after a full interval of outbound silence. An interval
// of 0 disables it entirely.
type ticker struct {
	interval time.Duration
	resets   chan struct{}
	done     chan struct{}
	once     sync.Once
}

func newTicker(interval time.Duration) *ticker {
	return &ticker{
		interval: interval,
		resets:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Run fires fn after every uninterrupted interval, until fn returns false
// or the ticker is cancelled. It returns immediately when the interval is 0.
func (t *ticker) Run(fn func() bool) {
	if t.interval == 0 {
		return
	}

	tm := time.NewTimer(t.interval)
	defer tm.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-t.resets:
			if !tm.Stop() {
				select {
				case <-tm.C:
				default:
				}
			}
			tm.Reset(t.interval)
		case <-tm.C:
			if !fn() {
				return
			}
			tm.Reset(t.interval)
		}
	}
}

// Reset restarts the interval from now without firing. Never blocks; resets
// coalesce when the run loop is behind.
func (t *ticker) Reset() {
	select {
	case t.resets <- struct{}{}:
	default:
	}
}

// Cancel stops the ticker permanently. Idempotent.
func (t *ticker) Cancel() {
	t.once.Do(func() {
		close(t.done)
	})
}
