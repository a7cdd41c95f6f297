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

package bandwidth

import (
	"context"
	"time"

	libatm "github.com/nabbar/golib/atomic"
	libsiz "github.com/nabbar/golib/size"
)

type mtr struct {
	l libsiz.Size
	t libatm.Value[time.Time]
}

func (o *mtr) Rate() libsiz.Size {
	if o == nil {
		return 0
	}

	return o.l
}

func (o *mtr) Reset() {
	if o == nil {
		return
	}

	o.t.Store(time.Time{})
}

func (o *mtr) Wait(ctx context.Context, n int) {
	if o == nil || o.l == 0 || n < 1 {
		return
	}

	var (
		rte = o.l.Float64()
		lst = o.t.Load()
	)

	if !lst.IsZero() {
		// allowance earned while idle, capped implicitly by the chunk size
		ern := time.Since(lst).Seconds() * rte
		if xtr := float64(n) - ern; xtr > 0 {
			o.sleep(ctx, time.Duration((xtr/rte)*float64(time.Second)))
		}
	}

	o.t.Store(time.Now())
}

func (o *mtr) sleep(ctx context.Context, d time.Duration) {
	if d < 1 {
		return
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
