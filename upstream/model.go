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

package upstream

import (
	"context"
	"net"
	"sync"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	libptc "github.com/nabbar/golib/network/protocol"
)

type lnk struct {
	a string
	g liblog.FuncLog

	m sync.Mutex
	c net.Conn
	o [][]byte // offline FIFO, only before connect
	k bool     // closed
	f bool     // failed connect
}

func (o *lnk) Write(p []byte) (n int, err error) {
	o.m.Lock()
	defer o.m.Unlock()

	if o.k || o.f {
		return 0, ErrorLinkClosed.Error(nil)
	}

	if o.c == nil {
		b := make([]byte, len(p))
		copy(b, p)
		o.o = append(o.o, b)
		return len(p), nil
	}

	return o.c.Write(p)
}

func (o *lnk) Dial(ctx context.Context) liberr.Error {
	d := net.Dialer{
		Timeout: ConnectTimeout,
	}

	c, e := d.DialContext(ctx, libptc.NetworkTCP.Code(), o.a)

	if e != nil {
		o.m.Lock()
		o.f = true
		o.o = nil
		o.m.Unlock()

		if n, k := e.(net.Error); k && n.Timeout() {
			return ErrorUpstreamTimeout.Error(e)
		}

		return ErrorUpstreamConnect.Error(e)
	}

	o.m.Lock()
	defer o.m.Unlock()

	if o.k {
		_ = c.Close()
		return ErrorLinkClosed.Error(nil)
	}

	o.c = c

	// flush offline bytes under the same lock that gates new writes,
	// so nothing can overtake them
	for _, b := range o.o {
		if _, e = c.Write(b); e != nil {
			o.f = true
			o.o = nil
			return ErrorUpstreamConnect.Error(e)
		}
	}

	o.o = nil

	if o.g != nil {
		if l := o.g(); l != nil {
			l.Entry(loglvl.DebugLevel, "upstream connected").FieldAdd("upstream", o.a).Log()
		}
	}

	return nil
}

func (o *lnk) Conn() net.Conn {
	o.m.Lock()
	defer o.m.Unlock()

	return o.c
}

func (o *lnk) IsConnected() bool {
	o.m.Lock()
	defer o.m.Unlock()

	return o.c != nil && !o.k && !o.f
}

func (o *lnk) Close() error {
	o.m.Lock()
	defer o.m.Unlock()

	if o.k {
		return nil
	}

	o.k = true
	o.o = nil

	if o.c != nil {
		return o.c.Close()
	}

	return nil
}
