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

// Package socks implements the server side of the SOCKS5 CONNECT
// handshake used to negotiate the upstream endpoint of a proxied
// connection.
//
// The negotiator consumes whole protocol records with exact-length
// reads on a buffered reader; bytes that arrive in the same TCP
// segment as the tail of the CONNECT record stay buffered and are
// handed back to the caller as the first payload bytes of the Data
// phase. Only the CONNECT command is served; BIND is swallowed
// silently and any other command is fatal.
package socks

import (
	"bufio"
	"context"
	"net"

	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
)

// SOCKS5 wire constants.
const (
	Version = 0x05

	MethodNoAuth       = 0x00
	MethodUser         = 0x02
	MethodNoAcceptable = 0xFF

	CommandConnect = 0x01
	CommandBind    = 0x02

	AddrIPv4   = 0x01
	AddrDomain = 0x03
	AddrIPv6   = 0x04
)

// FuncResolve resolves a hostname to an IPv4 literal. It backs the
// pinned destination host substitution.
type FuncResolve func(ctx context.Context, host string) (string, error)

// Target is the negotiated upstream endpoint.
type Target struct {
	Host string
	Port uint16
}

// Addr returns the endpoint as "host:port".
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, portString(t.Port))
}

// Config carries the negotiation options.
type Config struct {
	// DestHost pins the destination host: when set, it replaces the
	// negotiated host after one resolution through Resolver.
	DestHost string

	// Rewrite remaps the negotiated port. Nil means no rewriting.
	Rewrite RewriteMap

	// Resolver resolves the pinned host. Nil passes DestHost through
	// unresolved as the target host.
	Resolver FuncResolve
}

// Negotiator runs the SOCKS5 state machine on one client connection.
type Negotiator interface {
	// Negotiate drives Hello → Init and returns the upstream target
	// plus the buffered reader holding any trailing Data-phase bytes.
	// On protocol failure the returned error is fatal for the
	// connection; the caller closes it.
	Negotiate(ctx context.Context, conn net.Conn) (Target, *bufio.Reader, liberr.Error)
}

// New returns a Negotiator with the given options.
func New(cfg Config, log liblog.FuncLog) Negotiator {
	return &ngt{
		c: cfg,
		g: log,
	}
}

// Reply encodes the CONNECT success reply carrying the local bound
// address of the upstream socket, as a big-endian IPv4 and port.
func Reply(bound net.Addr) []byte {
	var (
		ip4 = net.IPv4zero.To4()
		prt uint16
	)

	if a, k := bound.(*net.TCPAddr); k {
		if v := a.IP.To4(); v != nil {
			ip4 = v
		}

		prt = uint16(a.Port)
	}

	r := make([]byte, 0, 10)
	r = append(r, Version, 0x00, 0x00, AddrIPv4)
	r = append(r, ip4...)
	r = append(r, byte(prt>>8), byte(prt))

	return r
}
