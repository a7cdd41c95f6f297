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

package bandwidth_test

import (
	"context"
	"time"

	libsiz "github.com/nabbar/golib/size"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tarekziade/tinap/bandwidth"
)

var _ = Describe("Meter", func() {
	Context("with a zero rate", func() {
		It("should be inert", func() {
			m := bandwidth.New(0)

			s := time.Now()
			m.Wait(x, 10*1024*1024)
			m.Wait(x, 10*1024*1024)

			Expect(time.Since(s)).To(BeNumerically("<", 50*time.Millisecond))
			Expect(m.Rate()).To(Equal(libsiz.Size(0)))
		})
	})

	Context("with a configured rate", func() {
		It("should report the configured ceiling", func() {
			m := bandwidth.New(libsiz.Size(125000))

			Expect(m.Rate()).To(Equal(libsiz.Size(125000)))
		})

		It("should not delay the first grant", func() {
			m := bandwidth.New(libsiz.Size(1000))

			s := time.Now()
			m.Wait(x, 5000)

			Expect(time.Since(s)).To(BeNumerically("<", 50*time.Millisecond))
		})

		It("should pace a second grant issued immediately", func() {
			// 100 kB/s: 5 kB issued back to back must wait about 50 ms
			m := bandwidth.New(libsiz.Size(100000))

			m.Wait(x, 5000)

			s := time.Now()
			m.Wait(x, 5000)
			d := time.Since(s)

			Expect(d).To(BeNumerically(">=", 35*time.Millisecond))
			Expect(d).To(BeNumerically("<", 500*time.Millisecond))
		})

		It("should credit idle time against the next grant", func() {
			m := bandwidth.New(libsiz.Size(100000))

			m.Wait(x, 1)
			time.Sleep(100 * time.Millisecond)

			// 100 ms of idle earns 10 kB, so 5 kB passes freely
			s := time.Now()
			m.Wait(x, 5000)

			Expect(time.Since(s)).To(BeNumerically("<", 30*time.Millisecond))
		})

		It("should stop sleeping when the context expires", func() {
			m := bandwidth.New(libsiz.Size(1000))

			c, l := context.WithTimeout(x, 50*time.Millisecond)
			defer l()

			m.Wait(c, 1)

			// 100 kB at 1 kB/s would sleep 100 s without the context
			s := time.Now()
			m.Wait(c, 100000)

			Expect(time.Since(s)).To(BeNumerically("<", time.Second))
		})
	})

	Context("after a reset", func() {
		It("should grant a full window again", func() {
			m := bandwidth.New(libsiz.Size(1000))

			m.Wait(x, 1)
			m.Reset()

			s := time.Now()
			m.Wait(x, 5000)

			Expect(time.Since(s)).To(BeNumerically("<", 50*time.Millisecond))
		})
	})
})
