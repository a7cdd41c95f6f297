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

// Package bandwidth implements a continuous-rate pacing meter.
//
// The meter answers one question: how long must the caller wait before
// emitting N more bytes without exceeding a configured rate. It keeps a
// single monotonic timestamp instead of a token bucket: the allowance
// earned since the last grant is elapsed × rate, and only the excess
// bytes translate into a sleep. Idle time therefore never accrues an
// unbounded send quota.
package bandwidth

import (
	"context"
	"time"

	libatm "github.com/nabbar/golib/atomic"
	libsiz "github.com/nabbar/golib/size"
)

// Meter paces byte emission against a fixed rate ceiling.
// A nil Meter or a zero rate is inert: Wait returns immediately.
type Meter interface {
	// Rate returns the configured ceiling in bytes per second.
	Rate() libsiz.Size

	// Wait blocks until n more bytes may be emitted under the configured
	// rate, then re-arms the meter's reference timestamp. The sleep is
	// aborted when the given context expires.
	Wait(ctx context.Context, n int)

	// Reset clears the reference timestamp, so the next Wait grants a
	// full allowance window.
	Reset()
}

// New returns a Meter limited to max bytes per second.
// A zero max yields an inert meter.
func New(max libsiz.Size) Meter {
	m := &mtr{
		l: max,
		t: libatm.NewValue[time.Time](),
	}

	return m
}
