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

// tinap is a TCP port forwarder with optional traffic shaping: added
// per-direction latency and per-direction bandwidth ceilings, in
// static forward or SOCKS5 mode.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	liblog "github.com/nabbar/golib/logger"
	logcfg "github.com/nabbar/golib/logger/config"
	loglvl "github.com/nabbar/golib/logger/level"
	spfcbr "github.com/spf13/cobra"
	spfvpr "github.com/spf13/viper"

	"github.com/tarekziade/tinap/conf"
	"github.com/tarekziade/tinap/metrics"
	"github.com/tarekziade/tinap/proxy"
)

const stopTimeout = 10 * time.Second

type flags struct {
	host         string
	port         uint16
	upstreamHost string
	upstreamPort uint16
	portMapping  string
	mode         string
	destHost     string
	mapPorts     string
	rtt          float64
	inKbps       float64
	outKbps      float64
	verbose      bool
	cfgFile      string
	metricsAddr  string
}

func main() {
	if e := newCommand().Execute(); e != nil {
		os.Exit(1)
	}
}

func newCommand() *spfcbr.Command {
	var f flags

	cmd := &spfcbr.Command{
		Use:           "tinap",
		Short:         "TCP port forwarder with traffic shaping",
		Long:          "tinap forwards TCP connections to an upstream endpoint, optionally adding latency and bandwidth limits per direction, in static forward or SOCKS5 mode.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *spfcbr.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&f.host, "host", "127.0.0.1", "local listener host")
	cmd.Flags().Uint16Var(&f.port, "port", 8888, "local listener port")
	cmd.Flags().StringVar(&f.upstreamHost, "upstream-host", "127.0.0.1", "static forward target host")
	cmd.Flags().Uint16Var(&f.upstreamPort, "upstream-port", 8080, "static forward target port")
	cmd.Flags().StringVar(&f.portMapping, "port-mapping", "", "comma-separated src_host:src_port/dst_host:dst_port rules, one listener each")
	cmd.Flags().StringVar(&f.mode, "mode", conf.ModeForward.String(), "operating mode: forward or socks5")
	cmd.Flags().StringVarP(&f.destHost, "desthost", "d", "", "socks5 pinned destination host")
	cmd.Flags().StringVarP(&f.mapPorts, "mapports", "m", "", "socks5 port rewrite, src:dst,... with * as default")
	cmd.Flags().Float64VarP(&f.rtt, "rtt", "r", 0, "total added round trip in milliseconds")
	cmd.Flags().Float64VarP(&f.inKbps, "inkbps", "i", 0, "download bandwidth cap in kbps")
	cmd.Flags().Float64VarP(&f.outKbps, "outkbps", "o", 0, "upload bandwidth cap in kbps")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logs")
	cmd.Flags().StringVar(&f.cfgFile, "config", "", "configuration file (yaml, json or toml)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address")

	return cmd
}

func run(ctx context.Context, f flags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cnl := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cnl()

	log := newLogger(ctx, f.verbose)
	defer func() {
		_ = log.Close()
	}()

	fct := func() liblog.Logger {
		return log
	}

	cfg, err := buildConfig(f)
	if err != nil {
		log.Error("invalid configuration", nil)
		return err
	}

	mtr := metrics.New()

	sup, err := proxy.New(*cfg, mtr, fct)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if e := mtr.Serve(ctx, cfg.MetricsAddr); e != nil {
				log.Error("metrics listener failed", nil)
			}
		}()
	}

	if e := sup.Start(ctx); e != nil {
		log.Error("startup failed: %v", nil, e)
		return e
	}

	log.Info("tinap started", nil)

	<-ctx.Done()

	stx, stp := context.WithTimeout(context.Background(), stopTimeout)
	defer stp()

	if e := sup.Stop(stx); e != nil {
		log.Error("shutdown incomplete: %v", nil, e)
	}

	log.Info("bye", nil)

	return nil
}

func newLogger(ctx context.Context, verbose bool) liblog.Logger {
	log := liblog.New(ctx)

	if verbose {
		log.SetLevel(loglvl.DebugLevel)
	} else {
		log.SetLevel(loglvl.InfoLevel)
	}

	_ = log.SetOptions(&logcfg.Options{
		Stdout: &logcfg.OptionsStd{
			DisableStack:     true,
			DisableTimestamp: false,
			EnableTrace:      false,
		},
	})

	return log
}

func buildConfig(f flags) (*conf.Config, error) {
	if f.cfgFile != "" {
		vpr := spfvpr.New()
		vpr.SetConfigFile(f.cfgFile)

		if e := vpr.ReadInConfig(); e != nil {
			return nil, e
		}

		c, e := conf.FromViper(vpr)
		if e != nil {
			return nil, e
		}

		return c, nil
	}

	mod, err := conf.ParseMode(f.mode)
	if err != nil {
		return nil, err
	}

	var rls []conf.Rule

	if f.portMapping != "" {
		if rls, err = conf.ParsePortMapping(f.portMapping); err != nil {
			return nil, err
		}
	} else {
		rls = []conf.Rule{{
			ListenHost:   f.host,
			ListenPort:   f.port,
			UpstreamHost: f.upstreamHost,
			UpstreamPort: f.upstreamPort,
		}}
	}

	cfg := &conf.Config{
		Mode:        mod,
		Rules:       rls,
		Shaping:     conf.ShapingFromCLI(f.rtt, f.inKbps, f.outKbps),
		DestHost:    f.destHost,
		MapPorts:    f.mapPorts,
		MetricsAddr: f.metricsAddr,
	}

	if e := cfg.Validate(); e != nil {
		return nil, e
	}

	return cfg, nil
}
