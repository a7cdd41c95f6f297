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

// Package proxy supervises the forwarder: it binds the configured
// listeners, accepts client connections, instantiates the per-mode
// handler for each one, tracks every live connection pair, and closes
// them en masse on shutdown.
package proxy

import (
	"context"
	"net"
	"sync"
	"time"

	libatm "github.com/nabbar/golib/atomic"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	librun "github.com/nabbar/golib/runner/startStop"

	"github.com/tarekziade/tinap/conf"
	"github.com/tarekziade/tinap/dnscache"
	"github.com/tarekziade/tinap/metrics"
	"github.com/tarekziade/tinap/relay"
	"github.com/tarekziade/tinap/socks"
)

// Supervisor runs the forwarder listeners and owns the live-pair set.
type Supervisor interface {
	// Start binds every configured listener then serves accept loops
	// in the background. A bind failure aborts the whole startup.
	Start(ctx context.Context) error

	// Stop cancels the accepts, closes the listeners, then closes
	// every registered pair.
	Stop(ctx context.Context) error

	// Restart chains Stop and Start.
	Restart(ctx context.Context) error

	// IsRunning reports whether the accept loops are live.
	IsRunning() bool

	// Uptime reports how long the supervisor has been running.
	Uptime() time.Duration

	// Addrs returns the bound listener addresses, in rule order.
	Addrs() []net.Addr

	// Pairs returns the number of currently registered pairs.
	Pairs() int
}

// New builds a Supervisor for the given configuration.
// The metrics collector may be nil.
func New(cfg conf.Config, mtr *metrics.Relay, log liblog.FuncLog) (Supervisor, liberr.Error) {
	if e := cfg.Validate(); e != nil {
		return nil, e
	}

	rwr, e := socks.NewRewriteMap(cfg.MapPorts)
	if e != nil {
		return nil, e
	}

	s := &spv{
		c: cfg,
		g: log,
		m: mtr,
		w: rwr,
		n: dnscache.New(),
		p: libatm.NewMapTyped[uint64, relay.Pair](),
		x: sync.Mutex{},
	}

	s.r = librun.New(s.run, s.halt)

	return s, nil
}
