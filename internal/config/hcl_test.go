// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/appwall/internal/errors"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, "/var/log/appwall-helper.log", c.LogFile)
	assert.Equal(t, 9000, c.CapturePort)
	assert.Equal(t, 9001, c.ControlPort)
	assert.Equal(t, "127.0.0.1", c.ListenAddress)
	assert.Equal(t, 512, c.SnapLen)
	assert.Equal(t, 16*1024*1024, c.BufferSize)
	assert.Equal(t, time.Millisecond, c.ReadTimeoutDuration())
	assert.Equal(t, 600*time.Second, c.StatsIntervalDuration())
	assert.Contains(t, c.Filter, "udp and port 53")
	assert.Empty(t, c.Attribution.Command)
}

func TestLoadBytes(t *testing.T) {
	src := `
log_file      = "/tmp/helper.log"
capture_port  = 9100
interface     = "en0"
stats_interval = "30s"
metrics_listen = "127.0.0.1:9102"

attribution {
  command = ["/usr/local/libexec/appwall-tracer", "-q"]
}
`
	c, err := LoadBytes("helper.hcl", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/helper.log", c.LogFile)
	assert.Equal(t, 9100, c.CapturePort)
	assert.Equal(t, 9001, c.ControlPort, "unset fields keep defaults")
	assert.Equal(t, "en0", c.Interface)
	assert.Equal(t, 30*time.Second, c.StatsIntervalDuration())
	assert.Equal(t, []string{"/usr/local/libexec/appwall-tracer", "-q"}, c.Attribution.Command)
}

func TestLoadBytes_SyntaxError(t *testing.T) {
	_, err := LoadBytes("bad.hcl", []byte(`capture_port = `))
	require.Error(t, err)
	assert.Equal(t, errors.KindInput, errors.GetKind(err))
}

func TestLoadBytes_UnknownField(t *testing.T) {
	_, err := LoadBytes("bad.hcl", []byte(`no_such_field = 1`))
	require.Error(t, err)
}

func TestLoad_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.hcl")

	c, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, DefaultCapturePort, c.CapturePort)

	_, err = Load(path, false)
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
	assert.Equal(t, path, errors.GetAttributes(err)["path"])
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helper.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`rules_file = "/etc/appwall/rules.txt"`), 0o644))

	c, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "/etc/appwall/rules.txt", c.RulesFile)
}

func TestLoad_AnyExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helper.conf")
	require.NoError(t, os.WriteFile(path, []byte(`capture_port = 9100`), 0o644))

	c, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, 9100, c.CapturePort)
}
