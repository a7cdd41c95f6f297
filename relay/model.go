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

package relay

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	libatm "github.com/nabbar/golib/atomic"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"

	"github.com/tarekziade/tinap/metrics"
	"github.com/tarekziade/tinap/shaper"
	"github.com/tarekziade/tinap/upstream"
)

type prr struct {
	cl net.Conn
	cr io.Reader
	cf Config
	g  liblog.FuncLog

	lk upstream.Link
	qe shaper.Queue
	qi shaper.Queue

	st libatm.Value[State]

	cx context.Context
	cn context.CancelFunc

	o sync.Once
	d chan struct{}
}

func (o *prr) State() State {
	return o.st.Load()
}

func (o *prr) Done() <-chan struct{} {
	return o.d
}

func (o *prr) Serve(ctx context.Context) {
	o.cx, o.cn = context.WithCancel(ctx)
	o.st.Store(StateConnecting)

	o.qe.Start(o.cx)

	go o.readLoop(o.cr, o.qe, metrics.DirectionOut)
	go o.connect()
}

func (o *prr) connect() {
	if e := o.lk.Dial(o.cx); e != nil {
		o.log(loglvl.InfoLevel, "upstream connect failed", e)

		if e.IsCode(upstream.ErrorUpstreamTimeout) {
			o.cf.Metrics.UpstreamFailure("timeout")
		} else {
			o.cf.Metrics.UpstreamFailure("error")
		}

		o.Close()
		return
	}

	o.st.Store(StateRelaying)

	if o.cf.OnConnected != nil {
		o.cf.OnConnected(o.lk.Conn())
	}

	o.qi.Start(o.cx)

	go o.readLoop(o.lk.Conn(), o.qi, metrics.DirectionIn)
}

func (o *prr) readLoop(r io.Reader, q shaper.Queue, dir string) {
	buf := make([]byte, 32*1024)

	for {
		n, e := r.Read(buf)

		if n > 0 {
			q.Push(buf[:n])
			o.cf.Metrics.AddBytes(dir, n)
		}

		if e != nil {
			if e != io.EOF {
				o.log(loglvl.DebugLevel, "relay read ended", e)
			}

			o.Close()
			return
		}
	}
}

func (o *prr) Close() {
	o.o.Do(func() {
		go o.shutdown()
	})
}

func (o *prr) shutdown() {
	o.st.Store(StateDraining)

	o.qe.Stop()
	o.qi.Stop()

	o.await(o.qe, o.qi)

	_ = o.cl.Close()
	_ = o.lk.Close()

	if o.cn != nil {
		o.cn()
	}

	o.st.Store(StateClosed)
	close(o.d)

	o.cf.Metrics.PairClosed()

	if o.cf.OnClosed != nil {
		o.cf.OnClosed()
	}
}

// await waits for both queues to finish draining, bounded so that a
// peer that stopped reading cannot wedge the teardown.
func (o *prr) await(q ...shaper.Queue) {
	t := time.NewTimer(DrainTimeout)
	defer t.Stop()

	for _, i := range q {
		select {
		case <-i.Done():
		case <-t.C:
			return
		}
	}
}

func (o *prr) log(lvl loglvl.Level, msg string, e error) {
	if o.g == nil {
		return
	}

	l := o.g()
	if l == nil {
		return
	}

	n := l.Entry(lvl, msg).FieldAdd("target", o.cf.Target)

	if o.cl != nil && o.cl.RemoteAddr() != nil {
		n = n.FieldAdd("client", o.cl.RemoteAddr().String())
	}

	if e != nil {
		n = n.ErrorAdd(true, e)
	}

	n.Log()
}
