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

// Package conf holds the forwarder configuration: listener rules,
// traffic shaping values, SOCKS options, and the conversions from the
// CLI units (total RTT in milliseconds, rates in kilobits per second)
// to the engine units (half-RTT duration, bytes per second).
package conf

import (
	"fmt"

	libval "github.com/go-playground/validator/v10"
	liberr "github.com/nabbar/golib/errors"
	spfvpr "github.com/spf13/viper"
)

// Mode selects how the upstream endpoint of a connection is chosen.
type Mode string

const (
	// ModeForward relays every connection to the rule's fixed upstream.
	ModeForward Mode = "forward"
	// ModeSocks negotiates the upstream per connection via SOCKS5.
	ModeSocks Mode = "socks5"
)

func (m Mode) String() string {
	return string(m)
}

// ParseMode validates a mode string from the CLI or a config file.
func ParseMode(s string) (Mode, liberr.Error) {
	switch Mode(s) {
	case ModeForward:
		return ModeForward, nil
	case ModeSocks:
		return ModeSocks, nil
	}

	return "", ErrorConfigMode.Errorf(s)
}

// Config is the complete forwarder configuration.
type Config struct {
	// Mode is the operating mode, forward or socks5.
	Mode Mode `json:"mode" yaml:"mode" toml:"mode" mapstructure:"mode" validate:"required,oneof=forward socks5"`

	// Rules lists the listener endpoints and their fixed upstreams.
	// In socks5 mode the upstream part of each rule is ignored.
	Rules []Rule `json:"rules" yaml:"rules" toml:"rules" mapstructure:"rules" validate:"required,min=1,dive"`

	// Shaping carries the per-direction latency and bandwidth settings.
	Shaping Shaping `json:"shaping" yaml:"shaping" toml:"shaping" mapstructure:"shaping"`

	// DestHost pins the SOCKS destination host, replacing the
	// negotiated one. Empty means no pinning.
	DestHost string `json:"dest-host,omitempty" yaml:"dest-host,omitempty" toml:"dest-host,omitempty" mapstructure:"dest-host,omitempty"`

	// MapPorts is the SOCKS port rewrite specification, "src:dst,…"
	// with "*" as default source.
	MapPorts string `json:"map-ports,omitempty" yaml:"map-ports,omitempty" toml:"map-ports,omitempty" mapstructure:"map-ports,omitempty"`

	// MetricsAddr enables the Prometheus exposition listener when set.
	MetricsAddr string `json:"metrics-addr,omitempty" yaml:"metrics-addr,omitempty" toml:"metrics-addr,omitempty" mapstructure:"metrics-addr,omitempty"`
}

// Validate checks the configuration coherence.
func (o Config) Validate() liberr.Error {
	var e = ErrorConfigValidator.Error(nil)

	if err := libval.New().Struct(o); err != nil {
		if er, ok := err.(*libval.InvalidValidationError); ok {
			e.Add(er)
		}

		for _, er := range err.(libval.ValidationErrors) {
			//nolint #goerr113
			e.Add(fmt.Errorf("config field '%s' is not validated by constraint '%s'", er.Namespace(), er.ActualTag()))
		}
	}

	if !e.HasParent() {
		e = nil
	}

	return e
}

// FromViper decodes a Config from the given viper instance, using the
// mapstructure tags plus the size and duration decoder hooks.
// Shaping.ShapeIngress defaults to true when the source omits it.
func FromViper(vpr *spfvpr.Viper) (*Config, liberr.Error) {
	var c Config

	if vpr == nil {
		return nil, ErrorConfigRead.Error(nil)
	}

	vpr.SetDefault("shaping.shape-ingress", true)

	if e := vpr.Unmarshal(&c, spfvpr.DecodeHook(decoderHooks())); e != nil {
		return nil, ErrorConfigRead.Error(e)
	}

	if e := c.Validate(); e != nil {
		return nil, e
	}

	return &c, nil
}
