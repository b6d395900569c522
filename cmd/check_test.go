// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/appwall/internal/ctlplane"
	"grimm.is/appwall/internal/errors"
	"grimm.is/appwall/internal/inject"
	"grimm.is/appwall/internal/logging"
	"grimm.is/appwall/internal/metrics"
	"grimm.is/appwall/internal/policy"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Output: io.Discard})
}

func TestCheck(t *testing.T) {
	path := writeRules(t, "firefox,evil.com\ncurl,*\ncurl,-ok.com\n*,ads.example\n")

	tests := []struct {
		app, domain string
		want        string
	}{
		{"firefox", "evil.com", "block"},
		{"firefox", "good.com", "allow"},
		{"curl", "anything.net", "block"},
		{"curl", "ok.com", "allow"},
		{"firefox", "ads.example", "block (host)"},
	}
	for _, tt := range tests {
		t.Run(tt.app+"/"+tt.domain, func(t *testing.T) {
			res, err := Check(path, tt.app, tt.domain, quietLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.String())
			assert.Equal(t, 4, res.Loaded)
		})
	}
}

func TestCheck_MissingFile(t *testing.T) {
	_, err := Check(filepath.Join(t.TempDir(), "none"), "a", "b", quietLogger())
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
}

func TestRunCheck_Output(t *testing.T) {
	path := writeRules(t, "firefox,evil.com\n")

	var buf bytes.Buffer
	require.NoError(t, RunCheck(&buf, path, "firefox", "evil.com", true))
	assert.Equal(t, "1 rules loaded from "+path+"\nblock\n", buf.String())

	assert.Error(t, RunCheck(&buf, "", "firefox", "evil.com", false))
}

type recordingInjector struct {
	mu   sync.Mutex
	reqs []inject.Request
}

func (r *recordingInjector) Reset(req inject.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return nil
}

func TestRunReset(t *testing.T) {
	inj := &recordingInjector{}
	srv := ctlplane.NewServer(inj, metrics.New(), quietLogger())
	ln, err := ctlplane.Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	req := inject.Request{Src: "10.0.0.2", Dst: "10.0.0.1", SPort: 40000, DPort: 443, Seq: 1}
	require.NoError(t, RunReset(ln.Addr().String(), req, time.Second))

	inj.mu.Lock()
	defer inj.mu.Unlock()
	assert.Equal(t, []inject.Request{req}, inj.reqs)
}

func TestDecisionStrings(t *testing.T) {
	assert.Equal(t, "block", CheckResult{Decision: policy.Block}.String())
	assert.Equal(t, "allow", CheckResult{Decision: policy.Allow}.String())
}
