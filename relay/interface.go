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

// Package relay couples one client connection with one upstream link
// and drives the two shaping queues between them.
//
// The egress queue (client → upstream) starts immediately: bytes that
// arrive before the upstream connect has resolved ride the queue into
// the link's offline buffer, so nothing is lost or reordered. The
// ingress queue starts once the upstream socket is up. Either side
// reporting end-of-stream or an error triggers the drain protocol:
// both queues are sentinel-terminated, awaited, and only then are both
// sockets closed.
package relay

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	libatm "github.com/nabbar/golib/atomic"
	liblog "github.com/nabbar/golib/logger"

	"github.com/tarekziade/tinap/bandwidth"
	"github.com/tarekziade/tinap/conf"
	"github.com/tarekziade/tinap/metrics"
	"github.com/tarekziade/tinap/shaper"
	"github.com/tarekziade/tinap/upstream"
)

// DrainTimeout bounds the wait on queue completion during shutdown, so
// closing never blocks on a peer that stopped reading.
const DrainTimeout = 5 * time.Second

// State is the pair lifecycle position.
type State uint8

const (
	StateInitializing State = iota
	StateConnecting
	StateRelaying
	StateDraining
	StateClosed
)

// String returns a printable state name.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateConnecting:
		return "Connecting"
	case StateRelaying:
		return "Relaying"
	case StateDraining:
		return "Draining"
	case StateClosed:
		return "Closed"
	}

	return "Unknown"
}

// Config carries the per-pair parameters.
type Config struct {
	// Target is the upstream endpoint as "host:port".
	Target string

	// Shaping holds the latency and bandwidth settings applied to both
	// directions of this pair.
	Shaping conf.Shaping

	// ClientReader overrides the read side of the client connection,
	// letting a protocol negotiator hand over buffered leftover bytes.
	// Nil means read the client connection directly.
	ClientReader io.Reader

	// OnConnected runs once the upstream socket is up, before any
	// ingress byte is written to the client.
	OnConnected func(c net.Conn)

	// OnClosed runs exactly once after both sockets are closed.
	OnClosed func()

	// Metrics receives the pair counters; nil disables accounting.
	Metrics *metrics.Relay
}

// Pair is one proxied session: the client socket, the upstream link,
// and the two shaping queues between them.
type Pair interface {
	// Serve initiates the upstream connect and the relay goroutines.
	// It does not block; completion is observed through Done.
	Serve(ctx context.Context)

	// Close triggers the drain protocol. Safe from any goroutine, in
	// any state, any number of times.
	Close()

	// Done is closed once the pair is fully torn down.
	Done() <-chan struct{}

	// State reports the current lifecycle position.
	State() State
}

// New builds a Pair for the given client connection.
func New(client net.Conn, cfg Config, log liblog.FuncLog) Pair {
	p := &prr{
		cl: client,
		cr: cfg.ClientReader,
		cf: cfg,
		g:  log,
		st: libatm.NewValueDefault[State](StateInitializing, StateInitializing),
		d:  make(chan struct{}),
		o:  sync.Once{},
	}

	if p.cr == nil {
		p.cr = client
	}

	var (
		mi bandwidth.Meter
		mo bandwidth.Meter
	)

	if cfg.Shaping.OutRate > 0 {
		mo = bandwidth.New(cfg.Shaping.OutRate)
	}

	if cfg.Shaping.ShapeIngress && cfg.Shaping.InRate > 0 {
		mi = bandwidth.New(cfg.Shaping.InRate)
	}

	p.lk = upstream.New(cfg.Target, log)
	p.qe = shaper.New("egress", cfg.Shaping.Latency.Time(), mo, p.lk, log)
	p.qi = shaper.New("ingress", cfg.Shaping.Latency.Time(), mi, client, log)

	p.qe.RegisterFuncError(func(e ...error) { p.Close() })
	p.qi.RegisterFuncError(func(e ...error) { p.Close() })

	return p
}
