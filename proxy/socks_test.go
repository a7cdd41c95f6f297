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

package proxy_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tarekziade/tinap/conf"
	"github.com/tarekziade/tinap/proxy"
)

func socksDial(lsp int) net.Conn {
	cli, e := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", lsp))
	Expect(e).ToNot(HaveOccurred())

	return cli
}

func socksRead(c net.Conn, n int) []byte {
	b := make([]byte, n)

	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, e := io.ReadFull(c, b)
	Expect(e).ToNot(HaveOccurred())
	_ = c.SetReadDeadline(time.Time{})

	return b
}

var _ = Describe("Socks mode", func() {
	Context("connect over ipv4", func() {
		It("should negotiate, reply with the bound address and relay", func() {
			lsn, upp := newEchoServer()
			defer func() {
				_ = lsn.Close()
			}()

			lsp := getFreePort()

			sup, err := proxy.New(socksConfig(lsp, "", conf.Shaping{}), nil, nil)
			Expect(err).To(BeNil())

			Expect(sup.Start(x)).To(Succeed())
			defer func() {
				c, l := context.WithTimeout(context.Background(), 10*time.Second)
				defer l()
				_ = sup.Stop(c)
			}()

			cli := socksDial(lsp)
			defer func() {
				_ = cli.Close()
			}()

			_, e := cli.Write([]byte{0x05, 0x01, 0x00})
			Expect(e).ToNot(HaveOccurred())
			Expect(socksRead(cli, 2)).To(Equal([]byte{0x05, 0x00}))

			// CONNECT 127.0.0.1:<echo port>
			req := []byte{0x05, 0x01, 0x00, 0x01, 0x7F, 0x00, 0x00, 0x01}
			req = append(req, byte(upp>>8), byte(upp))

			_, e = cli.Write(req)
			Expect(e).ToNot(HaveOccurred())

			rep := socksRead(cli, 10)
			Expect(rep[0]).To(Equal(byte(0x05)))
			Expect(rep[1]).To(Equal(byte(0x00)))
			Expect(rep[3]).To(Equal(byte(0x01)))

			_, e = cli.Write([]byte("ping through socks"))
			Expect(e).ToNot(HaveOccurred())

			Expect(string(socksRead(cli, 18))).To(Equal("ping through socks"))
		})

		It("should forward payload bytes glued to the connect record", func() {
			lsn, upp := newEchoServer()
			defer func() {
				_ = lsn.Close()
			}()

			lsp := getFreePort()

			sup, err := proxy.New(socksConfig(lsp, "", conf.Shaping{}), nil, nil)
			Expect(err).To(BeNil())

			Expect(sup.Start(x)).To(Succeed())
			defer func() {
				c, l := context.WithTimeout(context.Background(), 10*time.Second)
				defer l()
				_ = sup.Stop(c)
			}()

			cli := socksDial(lsp)
			defer func() {
				_ = cli.Close()
			}()

			_, e := cli.Write([]byte{0x05, 0x01, 0x00})
			Expect(e).ToNot(HaveOccurred())
			Expect(socksRead(cli, 2)).To(Equal([]byte{0x05, 0x00}))

			// the payload rides the same segment as the connect tail
			req := []byte{0x05, 0x01, 0x00, 0x01, 0x7F, 0x00, 0x00, 0x01}
			req = append(req, byte(upp>>8), byte(upp))
			req = append(req, []byte("EARLY")...)

			_, e = cli.Write(req)
			Expect(e).ToNot(HaveOccurred())

			Expect(socksRead(cli, 10)[1]).To(Equal(byte(0x00)))
			Expect(string(socksRead(cli, 5))).To(Equal("EARLY"))
		})
	})

	Context("connect over a domain name", func() {
		It("should resolve the host and rewrite the port", func() {
			lsn, upp := newEchoServer()
			defer func() {
				_ = lsn.Close()
			}()

			lsp := getFreePort()

			sup, err := proxy.New(socksConfig(lsp, fmt.Sprintf("80:%d", upp), conf.Shaping{}), nil, nil)
			Expect(err).To(BeNil())

			Expect(sup.Start(x)).To(Succeed())
			defer func() {
				c, l := context.WithTimeout(context.Background(), 10*time.Second)
				defer l()
				_ = sup.Stop(c)
			}()

			cli := socksDial(lsp)
			defer func() {
				_ = cli.Close()
			}()

			_, e := cli.Write([]byte{0x05, 0x01, 0x00})
			Expect(e).ToNot(HaveOccurred())
			Expect(socksRead(cli, 2)).To(Equal([]byte{0x05, 0x00}))

			// CONNECT localhost:80, rewritten to the echo port
			req := []byte{0x05, 0x01, 0x00, 0x03, 0x09}
			req = append(req, []byte("localhost")...)
			req = append(req, 0x00, 0x50)

			_, e = cli.Write(req)
			Expect(e).ToNot(HaveOccurred())

			Expect(socksRead(cli, 10)[1]).To(Equal(byte(0x00)))

			_, e = cli.Write([]byte("rewritten"))
			Expect(e).ToNot(HaveOccurred())
			Expect(string(socksRead(cli, 9))).To(Equal("rewritten"))
		})
	})

	Context("unsupported commands", func() {
		It("should swallow bind and never forward any byte", func() {
			lsn, upp := newEchoServer()
			defer func() {
				_ = lsn.Close()
			}()

			lsp := getFreePort()

			sup, err := proxy.New(socksConfig(lsp, "", conf.Shaping{}), nil, nil)
			Expect(err).To(BeNil())

			Expect(sup.Start(x)).To(Succeed())
			defer func() {
				c, l := context.WithTimeout(context.Background(), 10*time.Second)
				defer l()
				_ = sup.Stop(c)
			}()

			cli := socksDial(lsp)
			defer func() {
				_ = cli.Close()
			}()

			_, e := cli.Write([]byte{0x05, 0x01, 0x00})
			Expect(e).ToNot(HaveOccurred())
			Expect(socksRead(cli, 2)).To(Equal([]byte{0x05, 0x00}))

			// BIND towards the echo server
			req := []byte{0x05, 0x02, 0x00, 0x01, 0x7F, 0x00, 0x00, 0x01}
			req = append(req, byte(upp>>8), byte(upp))

			_, e = cli.Write(req)
			Expect(e).ToNot(HaveOccurred())

			// no reply, no forwarding, no pair
			_ = cli.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
			_, e = cli.Read(make([]byte, 1))
			Expect(e).To(HaveOccurred())

			Expect(sup.Pairs()).To(Equal(0))
		})
	})
})
