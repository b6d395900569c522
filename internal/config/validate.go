// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"grimm.is/appwall/internal/errors"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks ranges and formats. It returns a KindInput error wrapping
// ValidationErrors.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if net.ParseIP(c.ListenAddress) == nil {
		add("listen_address", "%q is not an IP address", c.ListenAddress)
	}
	ports := []struct {
		field string
		port  int
	}{
		{"capture_port", c.CapturePort},
		{"control_port", c.ControlPort},
	}
	for _, p := range ports {
		if p.port < 1 || p.port > 65535 {
			add(p.field, "port %d out of range", p.port)
		}
	}
	if c.CapturePort == c.ControlPort {
		add("control_port", "must differ from capture_port")
	}
	if c.SnapLen < 64 || c.SnapLen > 262144 {
		add("snap_len", "%d out of range [64, 262144]", c.SnapLen)
	}
	if c.BufferSize < 0 {
		add("buffer_size", "must not be negative")
	}
	if d, err := time.ParseDuration(c.ReadTimeout); err != nil || d <= 0 {
		add("read_timeout", "%q is not a positive duration", c.ReadTimeout)
	}
	if d, err := time.ParseDuration(c.StatsInterval); err != nil || d <= 0 {
		add("stats_interval", "%q is not a positive duration", c.StatsInterval)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		add("log_level", "%v", err)
	}
	if c.MetricsListen != "" {
		if _, _, err := net.SplitHostPort(c.MetricsListen); err != nil {
			add("metrics_listen", "%v", err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Wrap(errs, errors.KindInput, "invalid config")
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}
