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

package dnscache

import (
	"context"
	"net"

	libatm "github.com/nabbar/golib/atomic"
)

type dnc struct {
	c libatm.MapTyped[string, string]
}

func (o *dnc) Resolve(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	if v, k := o.c.Load(host); k {
		return v, nil
	}

	adr, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return "", err
	} else if len(adr) < 1 {
		return "", &net.DNSError{Err: "no address found", Name: host, IsNotFound: true}
	}

	res := adr[0].IP.String()

	for _, a := range adr {
		if v := a.IP.To4(); v != nil {
			res = v.String()
			break
		}
	}

	o.c.Store(host, res)

	return res, nil
}

func (o *dnc) Len() int {
	var n int

	o.c.Range(func(_ string, _ string) bool {
		n++
		return true
	})

	return n
}
