/*
 * MIT License
 *
 * Copyright (c) 2023 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package shaper provides the ordered byte-chunk queue that applies
// traffic shaping in front of a single writer.
//
// Each queue owns one writer goroutine bound to one sink. Chunks are
// written in the exact order they were pushed; before each write the
// writer sleeps the configured one-way latency, then waits on the
// bandwidth meter for the chunk length. A sentinel pushed by Stop
// terminates the loop once every prior chunk has been written.
package shaper

import (
	"context"
	"io"
	"sync"
	"time"

	libatm "github.com/nabbar/golib/atomic"
	liblog "github.com/nabbar/golib/logger"

	"github.com/tarekziade/tinap/bandwidth"
)

// FuncError is the callback invoked when the sink write fails.
// The queue is terminated once the callback returns.
type FuncError func(e ...error)

// Queue is an ordered FIFO of byte chunks feeding a single sink.
type Queue interface {
	// Start spawns the writer goroutine. Calling Start twice is a no-op.
	Start(ctx context.Context)

	// Push enqueues a copy of p. It never blocks the producer and
	// silently ignores empty chunks and pushes issued after Stop.
	Push(p []byte)

	// Stop enqueues the termination sentinel. Chunks pushed before Stop
	// are still written. Stop is idempotent and legal before Start.
	Stop()

	// Done is closed once the writer has processed the sentinel, hit a
	// sink error, or observed context expiry.
	Done() <-chan struct{}

	// RegisterFuncError sets the callback fired on a fatal sink error.
	RegisterFuncError(f FuncError)
}

// New returns a Queue writing to sink with the given one-way latency
// and optional pacing meter. A nil meter disables bandwidth control,
// a zero latency disables the delay; ordering still goes through the
// queue in both cases.
func New(name string, latency time.Duration, m bandwidth.Meter, sink io.Writer, log liblog.FuncLog) Queue {
	return &shp{
		n: name,
		l: latency,
		m: m,
		w: sink,
		s: sync.Once{},
		o: sync.Once{},
		c: make(chan struct{}, 1),
		d: make(chan struct{}),
		f: libatm.NewValue[FuncError](),
		g: log,
	}
}
