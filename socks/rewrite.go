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
	"strconv"
	"strings"

	liberr "github.com/nabbar/golib/errors"
)

// RewriteMap remaps negotiated destination ports. An explicit source
// entry wins over the default; without either the port is unchanged.
type RewriteMap interface {
	// Rewrite returns the target port for the given source port.
	Rewrite(port uint16) uint16

	// Len returns the number of explicit entries, default included.
	Len() int
}

// NewRewriteMap parses a "src:dst,…" specification, with "*" as the
// catch-all source. An empty specification yields a nil map.
func NewRewriteMap(spec string) (RewriteMap, liberr.Error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}

	r := &rwm{
		m: make(map[uint16]uint16),
	}

	for _, itm := range strings.Split(spec, ",") {
		itm = strings.TrimSpace(itm)

		if itm == "" {
			continue
		}

		prt := strings.SplitN(itm, ":", 2)
		if len(prt) != 2 {
			return nil, ErrorSocksRewrite.Errorf(itm)
		}

		dst, e := strconv.ParseUint(strings.TrimSpace(prt[1]), 10, 16)
		if e != nil {
			return nil, ErrorSocksRewrite.Error(e)
		}

		if src := strings.TrimSpace(prt[0]); src == "*" {
			d := uint16(dst)
			r.d = &d
		} else if v, er := strconv.ParseUint(src, 10, 16); er != nil {
			return nil, ErrorSocksRewrite.Error(er)
		} else {
			r.m[uint16(v)] = uint16(dst)
		}
	}

	return r, nil
}

type rwm struct {
	m map[uint16]uint16
	d *uint16
}

func (o *rwm) Rewrite(port uint16) uint16 {
	if o == nil {
		return port
	}

	if v, k := o.m[port]; k {
		return v
	}

	if o.d != nil {
		return *o.d
	}

	return port
}

func (o *rwm) Len() int {
	if o == nil {
		return 0
	}

	n := len(o.m)

	if o.d != nil {
		n++
	}

	return n
}
