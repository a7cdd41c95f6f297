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

package shaper_test

import (
	"fmt"
	"sync/atomic"
	"time"

	libsiz "github.com/nabbar/golib/size"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tarekziade/tinap/bandwidth"
	"github.com/tarekziade/tinap/shaper"
)

var _ = Describe("Queue", func() {
	Context("without latency nor bandwidth", func() {
		It("should write chunks in push order", func() {
			rec := &recorder{}
			q := shaper.New("test", 0, nil, rec, nil)

			q.Start(x)

			for i := 0; i < 100; i++ {
				q.Push([]byte(fmt.Sprintf("chunk-%03d;", i)))
			}

			q.Stop()
			Eventually(q.Done(), time.Second).Should(BeClosed())

			exp := ""
			for i := 0; i < 100; i++ {
				exp += fmt.Sprintf("chunk-%03d;", i)
			}

			Expect(string(rec.Bytes())).To(Equal(exp))
			Expect(rec.Writes()).To(Equal(100))
		})

		It("should keep chunks pushed before the writer starts", func() {
			rec := &recorder{}
			q := shaper.New("test", 0, nil, rec, nil)

			for i := 0; i < 10; i++ {
				q.Push([]byte{byte('a' + i)})
			}

			q.Start(x)
			q.Stop()

			Eventually(q.Done(), time.Second).Should(BeClosed())
			Expect(string(rec.Bytes())).To(Equal("abcdefghij"))
		})

		It("should ignore empty chunks", func() {
			rec := &recorder{}
			q := shaper.New("test", 0, nil, rec, nil)

			q.Start(x)
			q.Push(nil)
			q.Push([]byte{})
			q.Push([]byte("data"))
			q.Stop()

			Eventually(q.Done(), time.Second).Should(BeClosed())
			Expect(string(rec.Bytes())).To(Equal("data"))
		})

		It("should drop pushes issued after stop", func() {
			rec := &recorder{}
			q := shaper.New("test", 0, nil, rec, nil)

			q.Start(x)
			q.Push([]byte("kept"))
			q.Stop()
			q.Push([]byte("dropped"))

			Eventually(q.Done(), time.Second).Should(BeClosed())
			Expect(string(rec.Bytes())).To(Equal("kept"))
		})

		It("should tolerate a double stop", func() {
			rec := &recorder{}
			q := shaper.New("test", 0, nil, rec, nil)

			q.Start(x)
			q.Stop()
			q.Stop()

			Eventually(q.Done(), time.Second).Should(BeClosed())
		})

		It("should resolve done even when never started", func() {
			q := shaper.New("test", 0, nil, &recorder{}, nil)

			q.Stop()

			Eventually(q.Done(), time.Second).Should(BeClosed())
		})
	})

	Context("with latency", func() {
		It("should delay each chunk by the configured one-way latency", func() {
			rec := &recorder{}
			q := shaper.New("test", 50*time.Millisecond, nil, rec, nil)

			q.Start(x)

			s := time.Now()
			q.Push([]byte("one"))
			q.Push([]byte("two"))
			q.Stop()

			Eventually(q.Done(), 2*time.Second).Should(BeClosed())

			Expect(time.Since(s)).To(BeNumerically(">=", 100*time.Millisecond))
			Expect(string(rec.Bytes())).To(Equal("onetwo"))
		})
	})

	Context("with a bandwidth meter", func() {
		It("should pace the writes against the meter rate", func() {
			rec := &recorder{}
			// 10 kB/s: two back-to-back 1 kB chunks pace the second by ~100 ms
			q := shaper.New("test", 0, bandwidth.New(libsiz.Size(10000)), rec, nil)

			q.Start(x)

			s := time.Now()
			q.Push(make([]byte, 1000))
			q.Push(make([]byte, 1000))
			q.Stop()

			Eventually(q.Done(), 2*time.Second).Should(BeClosed())

			Expect(time.Since(s)).To(BeNumerically(">=", 80*time.Millisecond))
			Expect(rec.Bytes()).To(HaveLen(2000))
		})
	})

	Context("when the sink fails", func() {
		It("should fire the error callback and terminate", func() {
			var cnt atomic.Int32

			q := shaper.New("test", 0, nil, &brokenSink{}, nil)
			q.RegisterFuncError(func(e ...error) {
				cnt.Add(int32(len(e)))
			})

			q.Start(x)
			q.Push([]byte("boom"))

			Eventually(q.Done(), time.Second).Should(BeClosed())
			Expect(cnt.Load()).To(BeNumerically(">=", 1))
		})
	})
})
