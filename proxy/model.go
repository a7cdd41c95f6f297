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

package proxy

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	libatm "github.com/nabbar/golib/atomic"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	libptc "github.com/nabbar/golib/network/protocol"
	librun "github.com/nabbar/golib/runner/startStop"
	"golang.org/x/sync/errgroup"

	"github.com/tarekziade/tinap/conf"
	"github.com/tarekziade/tinap/dnscache"
	"github.com/tarekziade/tinap/metrics"
	"github.com/tarekziade/tinap/relay"
	"github.com/tarekziade/tinap/socks"
)

type spv struct {
	c conf.Config
	g liblog.FuncLog
	m *metrics.Relay
	w socks.RewriteMap
	n dnscache.Cache
	r librun.StartStop

	i atomic.Uint64
	p libatm.MapTyped[uint64, relay.Pair]

	x sync.Mutex
	l []net.Listener
}

func (o *spv) Start(ctx context.Context) error {
	if e := o.bind(); e != nil {
		return e
	}

	return o.r.Start(ctx)
}

func (o *spv) Stop(ctx context.Context) error {
	e := o.r.Stop(ctx)

	o.waitPairs(ctx)

	return e
}

func (o *spv) Restart(ctx context.Context) error {
	if e := o.Stop(ctx); e != nil {
		return e
	}

	return o.Start(ctx)
}

func (o *spv) IsRunning() bool {
	return o.r.IsRunning()
}

func (o *spv) Uptime() time.Duration {
	return o.r.Uptime()
}

func (o *spv) Addrs() []net.Addr {
	o.x.Lock()
	defer o.x.Unlock()

	res := make([]net.Addr, 0, len(o.l))

	for _, l := range o.l {
		res = append(res, l.Addr())
	}

	return res
}

func (o *spv) Pairs() int {
	var n int

	o.p.Range(func(_ uint64, _ relay.Pair) bool {
		n++
		return true
	})

	return n
}

func (o *spv) bind() liberr.Error {
	o.x.Lock()
	defer o.x.Unlock()

	if len(o.l) > 0 {
		return nil
	}

	lns := make([]net.Listener, 0, len(o.c.Rules))

	for _, r := range o.c.Rules {
		l, e := net.Listen(libptc.NetworkTCP.Code(), r.Listen())

		if e != nil {
			for _, b := range lns {
				_ = b.Close()
			}

			return ErrorListenerBind.Error(e)
		}

		o.info("listening", r.Listen())
		lns = append(lns, l)
	}

	o.l = lns

	return nil
}

// run is the runner start function: it blocks on the accept loops
// until the context is cancelled.
func (o *spv) run(ctx context.Context) error {
	o.x.Lock()
	lns := make([]net.Listener, len(o.l))
	copy(lns, o.l)
	rls := o.c.Rules
	o.x.Unlock()

	grp, gtx := errgroup.WithContext(ctx)

	for i := range lns {
		l := lns[i]
		r := rls[i]

		grp.Go(func() error {
			return o.accept(gtx, l, r)
		})
	}

	go func() {
		<-gtx.Done()
		o.closeListeners()
	}()

	return grp.Wait()
}

// halt is the runner stop function.
func (o *spv) halt(_ context.Context) error {
	o.closeListeners()
	o.closePairs()

	return nil
}

func (o *spv) accept(ctx context.Context, l net.Listener, r conf.Rule) error {
	for {
		c, e := l.Accept()

		if e != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			if errors.Is(e, net.ErrClosed) {
				return nil
			}

			// transient accept failure
			o.warn("accept failed", e)
			continue
		}

		go o.handle(ctx, c, r)
	}
}

func (o *spv) handle(ctx context.Context, c net.Conn, r conf.Rule) {
	switch o.c.Mode {
	case conf.ModeSocks:
		o.handleSocks(ctx, c)
	default:
		o.handleForward(ctx, c, r)
	}
}

func (o *spv) handleForward(ctx context.Context, c net.Conn, r conf.Rule) {
	o.serve(ctx, relay.Config{
		Target:  r.Upstream(),
		Shaping: o.c.Shaping,
	}, c)
}

func (o *spv) handleSocks(ctx context.Context, c net.Conn) {
	ngt := socks.New(socks.Config{
		DestHost: o.c.DestHost,
		Rewrite:  o.w,
		Resolver: o.n.Resolve,
	}, o.g)

	tgt, brd, err := ngt.Negotiate(ctx, c)

	if err != nil {
		o.warn("socks negotiation failed", err)
		_ = c.Close()
		return
	}

	o.serve(ctx, relay.Config{
		Target:       tgt.Addr(),
		Shaping:      o.c.Shaping,
		ClientReader: brd,
		OnConnected: func(u net.Conn) {
			_, _ = c.Write(socks.Reply(u.LocalAddr()))
		},
	}, c)
}

func (o *spv) serve(ctx context.Context, cfg relay.Config, c net.Conn) {
	id := o.i.Add(1)

	cfg.Metrics = o.m
	cfg.OnClosed = func() {
		o.p.Delete(id)
	}

	p := relay.New(c, cfg, o.g)

	o.p.Store(id, p)
	o.m.ConnAccepted(o.c.Mode.String())

	p.Serve(ctx)
}

func (o *spv) closeListeners() {
	o.x.Lock()
	defer o.x.Unlock()

	for _, l := range o.l {
		_ = l.Close()
	}

	o.l = nil
}

func (o *spv) closePairs() {
	o.p.Range(func(_ uint64, p relay.Pair) bool {
		p.Close()
		return true
	})
}

// waitPairs polls until every pair has de-registered or the context
// expires, so shutdown never blocks on a peer.
func (o *spv) waitPairs(ctx context.Context) {
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()

	for o.Pairs() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (o *spv) info(msg, addr string) {
	if o.g == nil {
		return
	}

	if l := o.g(); l != nil {
		l.Entry(loglvl.InfoLevel, msg).FieldAdd("address", addr).Log()
	}
}

func (o *spv) warn(msg string, e error) {
	if o.g == nil {
		return
	}

	if l := o.g(); l != nil {
		l.Entry(loglvl.WarnLevel, msg).ErrorAdd(true, e).Log()
	}
}
