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

// Package upstream manages the outbound half of a proxied pair.
//
// A Link accepts writes before its TCP connect has completed: such
// bytes land in an in-memory offline FIFO and are flushed to the
// socket, in order, the moment the connect resolves. Once flushed the
// FIFO is never used again and writes go straight to the socket.
package upstream

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
)

// ConnectTimeout bounds the upstream TCP connect.
const ConnectTimeout = 5 * time.Second

// Link is one upstream TCP connection plus its pre-connect buffer.
type Link interface {
	io.WriteCloser

	// Dial opens the upstream connection under the fixed connect
	// timeout, then flushes the offline FIFO in enqueue order. On
	// timeout or socket error the link enters a failed terminal state.
	Dial(ctx context.Context) liberr.Error

	// Conn returns the upstream socket, or nil before Dial resolved.
	Conn() net.Conn

	// IsConnected reports whether the upstream socket is usable.
	IsConnected() bool
}

// New returns a Link targeting the given "host:port" address.
func New(addr string, log liblog.FuncLog) Link {
	return &lnk{
		a: addr,
		g: log,
		m: sync.Mutex{},
	}
}
