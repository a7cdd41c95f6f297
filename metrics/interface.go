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

// Package metrics exposes the forwarder counters over Prometheus.
// A nil *Relay is fully inert, so callers never guard their calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Direction labels for the relay byte counters.
const (
	DirectionIn  = "in"  // upstream → client
	DirectionOut = "out" // client → upstream
)

// Relay aggregates the per-connection counters of the forwarder.
type Relay struct {
	reg *prometheus.Registry

	conns *prometheus.CounterVec
	pairs prometheus.Gauge
	bytes *prometheus.CounterVec
	fails *prometheus.CounterVec
}

// New builds the collector set on a dedicated registry.
func New() *Relay {
	m := &Relay{
		reg: prometheus.NewRegistry(),
		conns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinap_connections_total",
			Help: "Accepted client connections, by operating mode.",
		}, []string{"mode"}),
		pairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tinap_active_pairs",
			Help: "Currently relaying connection pairs.",
		}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinap_relay_bytes_total",
			Help: "Relayed payload bytes, by direction.",
		}, []string{"direction"}),
		fails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinap_upstream_failures_total",
			Help: "Upstream connect failures, by reason.",
		}, []string{"reason"}),
	}

	m.reg.MustRegister(m.conns, m.pairs, m.bytes, m.fails)

	return m
}

// ConnAccepted counts one accepted client connection.
func (o *Relay) ConnAccepted(mode string) {
	if o == nil {
		return
	}

	o.conns.WithLabelValues(mode).Inc()
	o.pairs.Inc()
}

// PairClosed marks one pair fully closed.
func (o *Relay) PairClosed() {
	if o == nil {
		return
	}

	o.pairs.Dec()
}

// AddBytes accounts relayed payload bytes for one direction.
func (o *Relay) AddBytes(direction string, n int) {
	if o == nil || n < 1 {
		return
	}

	o.bytes.WithLabelValues(direction).Add(float64(n))
}

// UpstreamFailure counts one failed upstream connect.
func (o *Relay) UpstreamFailure(reason string) {
	if o == nil {
		return
	}

	o.fails.WithLabelValues(reason).Inc()
}
