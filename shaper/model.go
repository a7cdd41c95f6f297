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

package shaper

import (
	"context"
	"io"
	"sync"
	"time"

	libatm "github.com/nabbar/golib/atomic"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"

	"github.com/tarekziade/tinap/bandwidth"
)

type shp struct {
	n string
	l time.Duration
	m bandwidth.Meter
	w io.Writer
	g liblog.FuncLog

	s sync.Once // start
	o sync.Once // stop / done close

	x sync.Mutex
	q [][]byte // nil entry is the termination sentinel
	t bool     // sentinel enqueued
	r bool     // writer started

	c chan struct{} // wake signal, capacity 1
	d chan struct{}

	f libatm.Value[FuncError]
}

func (o *shp) Push(p []byte) {
	if len(p) < 1 {
		return
	}

	b := make([]byte, len(p))
	copy(b, p)

	o.x.Lock()
	if !o.t {
		o.q = append(o.q, b)
	}
	o.x.Unlock()

	o.wake()
}

func (o *shp) Stop() {
	o.x.Lock()
	if !o.t {
		o.t = true
		o.q = append(o.q, nil)
	}
	r := o.r
	o.x.Unlock()

	o.wake()

	// no writer to process the sentinel
	if !r {
		o.o.Do(func() {
			close(o.d)
		})
	}
}

func (o *shp) Done() <-chan struct{} {
	return o.d
}

func (o *shp) RegisterFuncError(f FuncError) {
	if f != nil {
		o.f.Store(f)
	}
}

func (o *shp) Start(ctx context.Context) {
	o.s.Do(func() {
		o.x.Lock()
		o.r = true
		o.x.Unlock()

		go o.writer(ctx)
	})
}

func (o *shp) wake() {
	select {
	case o.c <- struct{}{}:
	default:
	}
}

func (o *shp) pop(ctx context.Context) ([]byte, bool) {
	for {
		o.x.Lock()
		if len(o.q) > 0 {
			p := o.q[0]
			o.q = o.q[1:]
			o.x.Unlock()

			if p == nil {
				return nil, false
			}

			return p, true
		}
		o.x.Unlock()

		select {
		case <-o.c:
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (o *shp) writer(ctx context.Context) {
	defer o.o.Do(func() {
		close(o.d)
	})

	for {
		p, ok := o.pop(ctx)
		if !ok {
			return
		}

		o.delay(ctx)

		if o.m != nil {
			o.m.Wait(ctx, len(p))
		}

		if _, e := o.w.Write(p); e != nil {
			o.fail(e)
			return
		}
	}
}

func (o *shp) delay(ctx context.Context) {
	if o.l < 1 {
		return
	}

	t := time.NewTimer(o.l)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (o *shp) fail(e error) {
	if o.g != nil {
		if l := o.g(); l != nil {
			l.Entry(loglvl.ErrorLevel, "shaping queue write failed").FieldAdd("queue", o.n).ErrorAdd(true, ErrorQueueWrite.Error(e)).Log()
		}
	}

	if f := o.f.Load(); f != nil {
		f(ErrorQueueWrite.Error(e))
	}
}
