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

package conf

import (
	"net"
	"strconv"
	"strings"

	liberr "github.com/nabbar/golib/errors"
)

// Rule maps one listener endpoint to one upstream endpoint.
type Rule struct {
	ListenHost   string `json:"listen-host" yaml:"listen-host" toml:"listen-host" mapstructure:"listen-host" validate:"required"`
	ListenPort   uint16 `json:"listen-port" yaml:"listen-port" toml:"listen-port" mapstructure:"listen-port" validate:"required"`
	UpstreamHost string `json:"upstream-host" yaml:"upstream-host" toml:"upstream-host" mapstructure:"upstream-host"`
	UpstreamPort uint16 `json:"upstream-port" yaml:"upstream-port" toml:"upstream-port" mapstructure:"upstream-port"`
}

// Listen returns the listener endpoint as "host:port".
func (r Rule) Listen() string {
	return net.JoinHostPort(r.ListenHost, strconv.Itoa(int(r.ListenPort)))
}

// Upstream returns the upstream endpoint as "host:port".
func (r Rule) Upstream() string {
	return net.JoinHostPort(r.UpstreamHost, strconv.Itoa(int(r.UpstreamPort)))
}

// ParsePortMapping parses the comma-separated CLI mapping rules, each
// shaped "src_host:src_port/dst_host:dst_port", into one Rule per
// entry.
func ParsePortMapping(spec string) ([]Rule, liberr.Error) {
	var res []Rule

	for _, itm := range strings.Split(spec, ",") {
		itm = strings.TrimSpace(itm)

		if itm == "" {
			continue
		}

		prt := strings.SplitN(itm, "/", 2)
		if len(prt) != 2 {
			return nil, ErrorConfigMapping.Errorf(itm)
		}

		lsh, lsp, err := splitEndpoint(prt[0])
		if err != nil {
			return nil, err
		}

		ush, usp, err := splitEndpoint(prt[1])
		if err != nil {
			return nil, err
		}

		res = append(res, Rule{
			ListenHost:   lsh,
			ListenPort:   lsp,
			UpstreamHost: ush,
			UpstreamPort: usp,
		})
	}

	if len(res) < 1 {
		return nil, ErrorConfigMapping.Errorf(spec)
	}

	return res, nil
}

func splitEndpoint(s string) (string, uint16, liberr.Error) {
	h, p, e := net.SplitHostPort(strings.TrimSpace(s))
	if e != nil {
		return "", 0, ErrorConfigMapping.Error(e)
	}

	i, e := strconv.ParseUint(p, 10, 16)
	if e != nil {
		return "", 0, ErrorConfigMapping.Error(e)
	}

	return h, uint16(i), nil
}
