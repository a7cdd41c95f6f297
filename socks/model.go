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

package socks

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
)

type ngt struct {
	c Config
	g liblog.FuncLog
}

func (o *ngt) Negotiate(ctx context.Context, conn net.Conn) (Target, *bufio.Reader, liberr.Error) {
	br := bufio.NewReader(conn)

	mth, err := o.hello(br, conn)
	if err != nil {
		return Target{}, nil, err
	}

	if mth == MethodUser {
		// authentication is not implemented: any byte in this state is
		// fatal, as is the client hanging up
		_, _ = br.ReadByte()
		return Target{}, nil, ErrorSocksAuth.Error(nil)
	}

	tgt, err := o.init(ctx, br)
	if err != nil {
		return Target{}, nil, err
	}

	return tgt, br, nil
}

func (o *ngt) hello(br *bufio.Reader, conn net.Conn) (byte, liberr.Error) {
	var hdr [2]byte

	if _, e := io.ReadFull(br, hdr[:]); e != nil {
		return 0, ErrorSocksTruncated.Error(e)
	}

	if hdr[0] != Version {
		return 0, ErrorSocksVersion.Errorf(int(hdr[0]))
	}

	mts := make([]byte, int(hdr[1]))
	if _, e := io.ReadFull(br, mts); e != nil {
		return 0, ErrorSocksTruncated.Error(e)
	}

	mth := byte(MethodNoAcceptable)

	if bytes.IndexByte(mts, MethodUser) >= 0 {
		mth = MethodUser
	} else if bytes.IndexByte(mts, MethodNoAuth) >= 0 {
		mth = MethodNoAuth
	}

	if _, e := conn.Write([]byte{Version, mth}); e != nil {
		return 0, ErrorSocksWrite.Error(e)
	}

	if mth == MethodNoAcceptable {
		return 0, ErrorSocksNoMethod.Error(nil)
	}

	o.debug("method selected", "method", int(mth))

	return mth, nil
}

func (o *ngt) init(ctx context.Context, br *bufio.Reader) (Target, liberr.Error) {
	for {
		var hdr [4]byte

		if _, e := io.ReadFull(br, hdr[:]); e != nil {
			return Target{}, ErrorSocksTruncated.Error(e)
		}

		if hdr[0] != Version {
			return Target{}, ErrorSocksVersion.Errorf(int(hdr[0]))
		}

		hst, prt, err := o.address(br, hdr[3])
		if err != nil {
			return Target{}, err
		}

		switch hdr[1] {
		case CommandConnect:
			return o.target(ctx, hst, prt)

		case CommandBind:
			// not implemented: swallowed without a reply, the state
			// machine stays on Init and reads the next record
			o.debug("ignoring BIND request", "host", hst)

		default:
			return Target{}, ErrorSocksCommand.Errorf(int(hdr[1]))
		}
	}
}

func (o *ngt) address(br *bufio.Reader, atyp byte) (string, uint16, liberr.Error) {
	var hst string

	switch atyp {
	case AddrIPv4:
		var b [4]byte
		if _, e := io.ReadFull(br, b[:]); e != nil {
			return "", 0, ErrorSocksTruncated.Error(e)
		}
		hst = net.IP(b[:]).String()

	case AddrDomain:
		l, e := br.ReadByte()
		if e != nil {
			return "", 0, ErrorSocksTruncated.Error(e)
		}
		b := make([]byte, int(l))
		if _, e = io.ReadFull(br, b); e != nil {
			return "", 0, ErrorSocksTruncated.Error(e)
		}
		hst = string(b)

	case AddrIPv6:
		var b [16]byte
		if _, e := io.ReadFull(br, b[:]); e != nil {
			return "", 0, ErrorSocksTruncated.Error(e)
		}
		hst = net.IP(b[:]).String()

	default:
		return "", 0, ErrorSocksAddrType.Errorf(int(atyp))
	}

	var p [2]byte
	if _, e := io.ReadFull(br, p[:]); e != nil {
		return "", 0, ErrorSocksTruncated.Error(e)
	}

	return hst, binary.BigEndian.Uint16(p[:]), nil
}

func (o *ngt) target(ctx context.Context, hst string, prt uint16) (Target, liberr.Error) {
	if o.c.DestHost != "" {
		if o.c.Resolver != nil {
			r, e := o.c.Resolver(ctx, o.c.DestHost)
			if e != nil {
				return Target{}, ErrorSocksResolve.Error(e)
			}
			hst = r
		} else {
			hst = o.c.DestHost
		}
	}

	if o.c.Rewrite != nil {
		prt = o.c.Rewrite.Rewrite(prt)
	}

	o.debug("connect negotiated", "target", hst+":"+strconv.Itoa(int(prt)))

	return Target{Host: hst, Port: prt}, nil
}

func (o *ngt) debug(msg, key string, val interface{}) {
	if o.g == nil {
		return
	}

	if l := o.g(); l != nil {
		l.Entry(loglvl.DebugLevel, msg).FieldAdd(key, val).Log()
	}
}

func portString(p uint16) string {
	return strconv.Itoa(int(p))
}
