package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pgfnsync/internal/automation/stats"
	"pgfnsync/internal/platform/config"
)

type fakeEngine struct {
	mu        sync.Mutex
	checkErr  error
	runErr    error
	loopErr   error
	summary   stats.Summary
	onceCalls int
	loopCalls int
	stopCalls int
}

func (f *fakeEngine) CheckConnections(context.Context) error { return f.checkErr }

func (f *fakeEngine) RunOnce(context.Context) (stats.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onceCalls++
	return f.summary, f.runErr
}

func (f *fakeEngine) RunContinuously(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loopCalls++
	return f.loopErr
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
}

func fakeBuilder(eng *fakeEngine, cfg config.Config) (builder, *bool) {
	closed := false
	return func(context.Context) (*runtime, error) {
		return &runtime{
			cfg:     cfg,
			logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
			engine:  eng,
			monitor: http.NotFoundHandler(),
			close:   func() { closed = true },
		}, nil
	}, &closed
}

func execute(t *testing.T, build builder, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(build)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "pgfn-automation", cmd.Use)

	server := cmd.Flags().Lookup("server")
	require.NotNil(t, server)
	assert.Equal(t, "s", server.Shorthand)
	assert.Equal(t, "false", server.DefValue)

	test := cmd.Flags().Lookup("test")
	require.NotNil(t, test)
	assert.Equal(t, "t", test.Shorthand)
}

func TestServerAndTestAreExclusive(t *testing.T) {
	eng := &fakeEngine{}
	build, _ := fakeBuilder(eng, config.DefaultConfig())

	_, err := execute(t, build, "-s", "-t")
	require.Error(t, err)
	assert.Zero(t, eng.onceCalls)
	assert.Zero(t, eng.loopCalls)
}

func TestModeFor(t *testing.T) {
	tests := []struct {
		name       string
		opts       RootOptions
		continuous bool
		want       Mode
	}{
		{"default runs once", RootOptions{}, false, ModeOnce},
		{"env selects continuous", RootOptions{}, true, ModeContinuous},
		{"server flag", RootOptions{Server: true}, false, ModeServer},
		{"test flag wins", RootOptions{Test: true}, true, ModeTest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ModeFor(tt.opts, config.AutomationConfig{ContinuousMode: tt.continuous})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunOncePrintsSummary(t *testing.T) {
	eng := &fakeEngine{summary: stats.Summary{ExecutionID: "exec-1", Discovered: 2, Succeeded: 2}}
	build, closed := fakeBuilder(eng, config.DefaultConfig())

	out, err := execute(t, build)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.onceCalls)
	assert.Contains(t, out, "exec-1")
	assert.True(t, *closed)
}

func TestRunOnceFailureStillPrintsSummary(t *testing.T) {
	eng := &fakeEngine{
		summary: stats.Summary{ExecutionID: "exec-2", Failed: 1},
		runErr:  errors.New("deal 7: write deal fields: boom"),
	}
	build, _ := fakeBuilder(eng, config.DefaultConfig())

	out, err := execute(t, build)
	require.Error(t, err)
	assert.Contains(t, out, "exec-2")
}

func TestContinuousModeFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Automation.ContinuousMode = true
	eng := &fakeEngine{}
	build, _ := fakeBuilder(eng, cfg)

	_, err := execute(t, build)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.loopCalls)
	assert.Zero(t, eng.onceCalls)
}

func TestConnectivityMode(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		eng := &fakeEngine{}
		build, _ := fakeBuilder(eng, config.DefaultConfig())

		out, err := execute(t, build, "--test")
		require.NoError(t, err)
		assert.Contains(t, out, "connectivity check passed")
		assert.Zero(t, eng.onceCalls)
	})

	t.Run("unreachable", func(t *testing.T) {
		eng := &fakeEngine{checkErr: errors.New("dependency unavailable: registry: refused")}
		build, _ := fakeBuilder(eng, config.DefaultConfig())

		out, err := execute(t, build, "-t")
		require.Error(t, err)
		assert.Contains(t, out, "connectivity check failed")
	})
}

func TestServerModeEndsWithLoop(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Monitor.Addr = "127.0.0.1:0"
	eng := &fakeEngine{}
	build, closed := fakeBuilder(eng, cfg)

	_, err := execute(t, build, "--server")
	require.NoError(t, err)
	assert.Equal(t, 1, eng.loopCalls)
	assert.True(t, *closed)
}

func TestServerModeReturnsLoopError(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Monitor.Addr = "127.0.0.1:0"
	eng := &fakeEngine{loopErr: errors.New("dependency unavailable: crm: refused")}
	build, _ := fakeBuilder(eng, cfg)

	_, err := execute(t, build, "-s")
	require.EqualError(t, err, "dependency unavailable: crm: refused")
}

func TestBuildFailure(t *testing.T) {
	build := func(context.Context) (*runtime, error) {
		return nil, errors.New("load config: batch size must be positive")
	}
	_, err := execute(t, build)
	require.EqualError(t, err, "load config: batch size must be positive")
}
