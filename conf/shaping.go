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
	"time"

	mapstr "github.com/mitchellh/mapstructure"
	libdur "github.com/nabbar/golib/duration"
	libsiz "github.com/nabbar/golib/size"
)

// wireOverhead compensates the TCP/IP header share of a 1500-byte
// frame: only 1460 bytes of payload ride each MTU.
const wireOverhead = 1460.0 / 1500.0

// Shaping carries the per-direction traffic shaping settings.
// Zero rates mean unlimited; a zero latency adds no delay.
type Shaping struct {
	// Latency is the one-way delay added per direction (half-RTT).
	Latency libdur.Duration `json:"latency" yaml:"latency" toml:"latency" mapstructure:"latency"`

	// InRate caps the upstream→client direction, bytes per second.
	InRate libsiz.Size `json:"in-rate" yaml:"in-rate" toml:"in-rate" mapstructure:"in-rate"`

	// OutRate caps the client→upstream direction, bytes per second.
	OutRate libsiz.Size `json:"out-rate" yaml:"out-rate" toml:"out-rate" mapstructure:"out-rate"`

	// ShapeIngress gates bandwidth control on the upstream→client
	// direction. Latency always applies.
	ShapeIngress bool `json:"shape-ingress" yaml:"shape-ingress" toml:"shape-ingress" mapstructure:"shape-ingress"`
}

// ShapingFromCLI converts the CLI units: rtt is the total added round
// trip in milliseconds (half applied per direction), the rates are in
// kilobits per second and are scaled by the wire overhead before the
// kbit→byte conversion.
func ShapingFromCLI(rttMs, inKbps, outKbps float64) Shaping {
	return Shaping{
		Latency:      libdur.ParseFloat64(rttMs / 2000 * float64(time.Second)),
		InRate:       kbpsToRate(inKbps),
		OutRate:      kbpsToRate(outKbps),
		ShapeIngress: true,
	}
}

func kbpsToRate(kbps float64) libsiz.Size {
	if kbps <= 0 {
		return 0
	}

	return libsiz.SizeFromInt64(int64(kbps * wireOverhead * 125))
}

func decoderHooks() mapstr.DecodeHookFunc {
	return mapstr.ComposeDecodeHookFunc(
		libsiz.ViperDecoderHook(),
		libdur.ViperDecoderHook(),
		mapstr.StringToTimeDurationHookFunc(),
		mapstr.StringToSliceHookFunc(","),
	)
}
