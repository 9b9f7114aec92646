// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

package mqtt

import (
	"context"
	"sync"
)

// Result is the terminal outcome of an acknowledged exchange. PUBACK,
// PUBCOMP and UNSUBACK carry no payload; a SUBACK additionally carries the
// granted qos code for each requested topic filter.
type Result struct {
	GrantedQoss []byte
}

// outcome is what the inbound pipeline writes into a receipt.
type outcome struct {
	grantedQoss []byte
	err         error
}

// receipt is a one-shot completion slot. It is completed at most once by
// whichever inbound frame (or teardown path) terminates the exchange, and
// awaited by exactly one caller.
type receipt struct {
	once sync.Once
	ch   chan outcome
}

func newReceipt() *receipt {
	return &receipt{
		ch: make(chan outcome, 1),
	}
}

// resolve completes the receipt. Later calls are no-ops; the first value
// written wins.
func (r *receipt) resolve(grantedQoss []byte, err error) {
	r.once.Do(func() {
		r.ch <- outcome{grantedQoss: grantedQoss, err: err}
	})
}

// wait blocks until the receipt is completed or the context ends.
func (r *receipt) wait(ctx context.Context) (Result, error) {
	select {
	case out := <-r.ch:
		return Result{GrantedQoss: out.grantedQoss}, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
