// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config holds the helper's HCL configuration.
package config

import (
	"time"
)

const (
	DefaultConfigFile    = "/etc/appwall/helper.hcl"
	DefaultLogFile       = "/var/log/appwall-helper.log"
	DefaultListenAddress = "127.0.0.1"
	DefaultCapturePort   = 9000
	DefaultControlPort   = 9001
	DefaultSnapLen       = 512
	DefaultBufferSize    = 16 << 20
	DefaultReadTimeout   = "1ms"
	DefaultStatsInterval = "600s"

	// DefaultFilter matches DNS, TCP SYNs over both address families, and
	// UDP 443 (QUIC).
	DefaultFilter = "(udp and port 53) or (tcp and (tcp[tcpflags]&tcp-syn!=0) || (ip6[6] == 6 && ip6[53]&tcp-syn!=0)) or (udp and port 443)"
)

// Config is the helper configuration file.
//
// Durations are strings in time.ParseDuration syntax; use ReadTimeoutDuration
// and StatsIntervalDuration after Validate.
type Config struct {
	LogFile       string `hcl:"log_file,optional"`
	ListenAddress string `hcl:"listen_address,optional"`
	CapturePort   int    `hcl:"capture_port,optional"`
	ControlPort   int    `hcl:"control_port,optional"`
	Interface     string `hcl:"interface,optional"`
	Filter        string `hcl:"filter,optional"`
	SnapLen       int    `hcl:"snap_len,optional"`
	BufferSize    int    `hcl:"buffer_size,optional"`
	ReadTimeout   string `hcl:"read_timeout,optional"`
	StatsInterval string `hcl:"stats_interval,optional"`
	MetricsListen string `hcl:"metrics_listen,optional"` // empty disables /metrics
	RulesFile     string `hcl:"rules_file,optional"`
	LogLevel      string `hcl:"log_level,optional"`

	Attribution *AttributionConfig `hcl:"attribution,block"`
}

// AttributionConfig describes the connection-owner tracer the helper
// supervises. An empty command disables it.
type AttributionConfig struct {
	Command []string `hcl:"command,optional"`
	Dir     string   `hcl:"dir,optional"`
}

// Default returns a config with every field at its default.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.LogFile == "" {
		c.LogFile = DefaultLogFile
	}
	if c.ListenAddress == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if c.CapturePort == 0 {
		c.CapturePort = DefaultCapturePort
	}
	if c.ControlPort == 0 {
		c.ControlPort = DefaultControlPort
	}
	if c.Filter == "" {
		c.Filter = DefaultFilter
	}
	if c.SnapLen == 0 {
		c.SnapLen = DefaultSnapLen
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.StatsInterval == "" {
		c.StatsInterval = DefaultStatsInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Attribution == nil {
		c.Attribution = &AttributionConfig{}
	}
}

func (c *Config) ReadTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ReadTimeout)
	return d
}

func (c *Config) StatsIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.StatsInterval)
	return d
}
