// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"grimm.is/appwall/internal/attribution"
	"grimm.is/appwall/internal/capture"
	"grimm.is/appwall/internal/config"
	"grimm.is/appwall/internal/ctlplane"
	"grimm.is/appwall/internal/helper"
	"grimm.is/appwall/internal/inject"
	"grimm.is/appwall/internal/logging"
	"grimm.is/appwall/internal/metrics"
)

const helperProcessName = "appwall-helper"

// HelperOptions are the command-line overrides for RunHelper.
type HelperOptions struct {
	ConfigFile string
	LogFile    string // overrides log_file
	Interface  string // overrides interface
	ReplayFile string // read packets from a pcap file instead of a live device
	Verbose    bool
}

// RunHelper runs the privileged helper until SIGTERM or SIGINT.
// Only setup failures are returned.
func RunHelper(opts HelperOptions) error {
	cfg, err := config.Load(opts.ConfigFile, true)
	if err != nil {
		return err
	}
	if opts.LogFile != "" {
		cfg.LogFile = opts.LogFile
	}
	if opts.Interface != "" {
		cfg.Interface = opts.Interface
	}

	redirected, err := logging.RedirectStdio(cfg.LogFile)
	if err != nil {
		// Keep going on the inherited stdio.
		fmt.Fprintf(os.Stderr, "appwall: %v\n", err)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	if opts.Verbose {
		level = logging.LevelDebug
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.Output = os.Stderr
	logging.SetDefault(logging.New(logCfg))
	logging.RedirectStdLog()
	logger := logging.WithComponent("helper")

	if redirected {
		logger.Info("Output redirected", "log_file", cfg.LogFile)
	}
	if err := SetProcessName(helperProcessName); err != nil {
		logger.Warn("Failed to set process name", "error", err)
	}

	signal.Ignore(syscall.SIGPIPE)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	m := metrics.New()

	handle, err := openCapture(cfg, opts.ReplayFile, logger)
	if err != nil {
		return err
	}

	captureLn, err := capture.Listen(hostPort(cfg.ListenAddress, cfg.CapturePort))
	if err != nil {
		handle.Close()
		return err
	}
	session := capture.NewSession(handle, captureLn, capture.SessionOptions{
		StatsInterval: cfg.StatsIntervalDuration(),
		Metrics:       m,
		Logger:        logging.WithComponent("capture"),
	})

	controlLn, err := ctlplane.Listen(hostPort(cfg.ListenAddress, cfg.ControlPort))
	if err != nil {
		captureLn.Close()
		handle.Close()
		return err
	}

	sender := inject.NewSender(logging.WithComponent("inject"))
	defer sender.Close()

	tracer := attribution.New(attribution.Options{
		Command: cfg.Attribution.Command,
		Dir:     cfg.Attribution.Dir,
		Stdout:  logging.OriginalStdout,
		Logger:  logging.WithComponent("attribution"),
	})

	deps := helper.Deps{
		Capture:         session,
		Control:         ctlplane.NewServer(sender, m, logging.WithComponent("ctlplane")),
		ControlListener: controlLn,
		Injector:        sender,
		Attribution:     tracer,
		Logger:          logger,
	}

	if cfg.MetricsListen != "" {
		ln, err := net.Listen("tcp", cfg.MetricsListen)
		if err != nil {
			// Metrics are optional; the helper runs without them.
			logger.Warn("Metrics listener unavailable", "addr", cfg.MetricsListen, "error", err)
		} else {
			deps.Metrics = m
			deps.MetricsListener = ln
		}
	}

	logger.Info("Starting helper",
		"capture", session.Addr().String(),
		"control", controlLn.Addr().String(),
		"filter", cfg.Filter)

	return helper.New(deps).Run(ctx)
}

func openCapture(cfg *config.Config, replay string, logger *logging.Logger) (capture.Handle, error) {
	if replay != "" {
		logger.Info("Replaying capture file", "file", replay)
		h, err := capture.OpenOffline(replay, cfg.Filter)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
	h, err := capture.OpenLive(capture.HandleOptions{
		Interface:   cfg.Interface,
		Filter:      cfg.Filter,
		SnapLen:     cfg.SnapLen,
		BufferSize:  cfg.BufferSize,
		ReadTimeout: cfg.ReadTimeoutDuration(),
	}, logging.WithComponent("capture"))
	if err != nil {
		return nil, err
	}
	return h, nil
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
