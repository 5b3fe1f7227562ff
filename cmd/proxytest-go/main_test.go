package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, ctx context.Context, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(ctx, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestScenarioAllSucceed(t *testing.T) {
	code, stdout, _ := runCLI(t, context.Background(), "-backend", "dummy", "proxy1:8080", "proxy1:8081")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "proxy1:8080")
	assert.Contains(t, stdout, "proxy1:8081")
	assert.Contains(t, stdout, "all passing")
}

func TestScenarioFailure(t *testing.T) {
	code, stdout, _ := runCLI(t, context.Background(), "-backend", "dummy-error", "proxy1:8080")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "1 failing")
}

func TestScenarioRange(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.json")
	code, _, _ := runCLI(t, context.Background(), "-backend", "dummy", "-output", out, "1.2.3.4:8080-8082")
	require.Equal(t, 0, code)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var got struct {
		Verdict struct {
			Targets []struct {
				Name string `json:"name"`
			} `json:"targets"`
		} `json:"verdict"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got.Verdict.Targets, 3)
	for i, want := range []string{"1.2.3.4:8080", "1.2.3.4:8081", "1.2.3.4:8082"} {
		assert.Equal(t, want, got.Verdict.Targets[i].Name)
	}
}

func TestScenarioMalformedSpec(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "archive.db")
	code, stdout, stderr := runCLI(t, context.Background(), "-backend", "dummy", "-archive", archive, "1.2.3.4:abc")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "1.2.3.4:abc")
	assert.Empty(t, stdout)
	// nothing was set up, so nothing was archived
	assert.NoFileExists(t, archive)
}

func TestSetupFailures(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no proxies", []string{"-backend", "dummy"}, "at least one proxy"},
		{"unknown backend", []string{"-backend", "carrier-pigeon", "none"}, "carrier-pigeon"},
		{"bad number", []string{"-number", "0", "none"}, "number"},
		{"bad url", []string{"-url", "gopher://example.com", "none"}, "scheme"},
		{"bad flag", []string{"-nope"}, "nope"},
		{"missing input", []string{"-input", "/does/not/exist"}, "exist"},
		{"bad template", []string{"-backend", "dummy", "-print", "-format", "{{", "none"}, "print format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, context.Background(), tt.args...)
			assert.Equal(t, 2, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestVersion(t *testing.T) {
	code, stdout, _ := runCLI(t, context.Background(), "-version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "proxytest-go dev\n", stdout)
}

func TestInputFileAndPrint(t *testing.T) {
	input := filepath.Join(t.TempDir(), "proxies.txt")
	require.NoError(t, os.WriteFile(input, []byte("# direct fetch\nnone\n"), 0o644))

	code, stdout, _ := runCLI(t, context.Background(), "-backend", "dummy", "-input", input, "-print", "-number", "2")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, `Content from request0 (no proxy): "dummy success..."`)
	assert.Contains(t, stdout, `Content from request1 (no proxy): "dummy success..."`)
}

func TestQuietPrintsNothing(t *testing.T) {
	code, stdout, stderr := runCLI(t, context.Background(), "-backend", "dummy-error", "-quiet", "none")
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)
}

func TestDefaultLogsHideAttemptFailures(t *testing.T) {
	_, _, stderr := runCLI(t, context.Background(), "-backend", "dummy-error", "none")
	assert.NotContains(t, stderr, "Error connecting")

	_, _, stderr = runCLI(t, context.Background(), "-backend", "dummy-error", "-verbose", "none")
	assert.Contains(t, stderr, "Error connecting")
}

func TestRepeatEndsOnCancelWhileWaiting(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "archive.db")
	ctx, cancel := context.WithTimeout(context.Background(), 350*time.Millisecond)
	defer cancel()

	code, stdout, _ := runCLI(t, ctx, "-backend", "dummy", "-repeat", "0.1", "-archive", archive, "none")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "all passing")
	assert.FileExists(t, archive)
}

func TestCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, stdout, _ := runCLI(t, ctx, "-backend", "dummy", "none")
	assert.Equal(t, 2, code)
	assert.Contains(t, stdout, "interrupted")
}

func TestListenAddrTakenIsSetupFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	code, stdout, stderr := runCLI(t, context.Background(), "-backend", "dummy", "-listen", ln.Addr().String(), "none")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "api: listen")
	assert.Empty(t, stdout)
}

func TestArchiveWithStatusAPI(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "archive.db")
	code, _, stderr := runCLI(t, context.Background(), "-backend", "dummy", "-archive", archive, "-listen", "127.0.0.1:0", "none")
	assert.Equal(t, 0, code)
	assert.NotContains(t, stderr, "archive:")
	assert.FileExists(t, archive)
}
