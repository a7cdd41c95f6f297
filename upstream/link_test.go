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

package upstream_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tarekziade/tinap/upstream"
)

var _ = Describe("Link", func() {
	Context("writing before the connect", func() {
		It("should buffer offline bytes and flush them in order on connect", func() {
			srv := newCaptureServer()
			defer srv.Close()

			lnk := upstream.New(srv.Addr(), nil)

			_, err := lnk.Write([]byte("hello "))
			Expect(err).ToNot(HaveOccurred())

			_, err = lnk.Write([]byte("offline "))
			Expect(err).ToNot(HaveOccurred())

			Expect(lnk.IsConnected()).To(BeFalse())
			Expect(lnk.Dial(x)).To(BeNil())
			Expect(lnk.IsConnected()).To(BeTrue())

			_, err = lnk.Write([]byte("world"))
			Expect(err).ToNot(HaveOccurred())

			Eventually(func() string {
				return string(srv.Bytes())
			}, time.Second).Should(Equal("hello offline world"))

			Expect(lnk.Close()).To(Succeed())
		})
	})

	Context("closing before the connect", func() {
		It("should discard offline bytes and refuse the dial", func() {
			srv := newCaptureServer()
			defer srv.Close()

			lnk := upstream.New(srv.Addr(), nil)

			_, err := lnk.Write([]byte("discarded"))
			Expect(err).ToNot(HaveOccurred())

			Expect(lnk.Close()).To(Succeed())

			e := lnk.Dial(x)
			Expect(e).ToNot(BeNil())
			Expect(e.IsCode(upstream.ErrorLinkClosed)).To(BeTrue())
		})

		It("should be idempotent", func() {
			lnk := upstream.New(unusedAddr(), nil)

			Expect(lnk.Close()).To(Succeed())
			Expect(lnk.Close()).To(Succeed())
		})
	})

	Context("failing to connect", func() {
		It("should report a connect error on a refused port", func() {
			lnk := upstream.New(unusedAddr(), nil)

			e := lnk.Dial(x)
			Expect(e).ToNot(BeNil())
			Expect(e.IsCode(upstream.ErrorUpstreamConnect)).To(BeTrue())
			Expect(lnk.IsConnected()).To(BeFalse())
		})

		It("should refuse writes once failed", func() {
			lnk := upstream.New(unusedAddr(), nil)

			Expect(lnk.Dial(x)).ToNot(BeNil())

			_, err := lnk.Write([]byte("late"))
			Expect(err).To(HaveOccurred())
		})

		It("should report a timeout on an unroutable endpoint", func() {
			// 192.0.2.0/24 is TEST-NET-1, nothing answers there
			lnk := upstream.New("192.0.2.1:81", nil)

			c, l := context.WithTimeout(x, 250*time.Millisecond)
			defer l()

			s := time.Now()
			e := lnk.Dial(c)

			Expect(e).ToNot(BeNil())
			// some hosts answer TEST-NET with an ICMP unreachable instead
			// of letting the connect time out
			Expect(e.IsCode(upstream.ErrorUpstreamTimeout) || e.IsCode(upstream.ErrorUpstreamConnect)).To(BeTrue())
			Expect(time.Since(s)).To(BeNumerically("<", 3*time.Second))
		})
	})

	Context("after close", func() {
		It("should refuse further writes", func() {
			srv := newCaptureServer()
			defer srv.Close()

			lnk := upstream.New(srv.Addr(), nil)

			Expect(lnk.Dial(x)).To(BeNil())
			Expect(lnk.Close()).To(Succeed())

			_, err := lnk.Write([]byte("late"))
			Expect(err).To(HaveOccurred())
		})
	})
})
