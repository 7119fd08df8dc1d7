package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R4VXN/updates-status/internal/collector"
	"github.com/R4VXN/updates-status/internal/lock"
)

type env struct {
	textfile string
	lockFile string
}

func setupEnv(t *testing.T, query string) env {
	t.Helper()
	dir := t.TempDir()
	e := env{
		textfile: filepath.Join(dir, "textfile", "os_updates_count.prom"),
		lockFile: filepath.Join(dir, "updates-status.lock"),
	}
	t.Setenv("TEXTFILE_DIR", filepath.Dir(e.textfile))
	t.Setenv("LOCK_FILE", e.lockFile)
	t.Setenv("WATCH_INTERVAL", "")
	t.Setenv("PKGMGR_TIMEOUT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	prev := newCounter
	newCounter = func() *collector.Counter {
		return collector.NewCounter(collector.Manager{
			Name:    "pacman",
			Binary:  "sh",
			Refresh: "exit 1",
			Query:   query,
		})
	}
	t.Cleanup(func() { newCounter = prev })
	return e
}

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	out, _, err := runCapture(t, ctx, args...)
	return out, err
}

func runCapture(t *testing.T, ctx context.Context, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func TestPrintDefault(t *testing.T) {
	setupEnv(t, `printf '12\n'`)

	out, err := run(t, context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12\n", out)

	out, err = run(t, context.Background(), "print")
	require.NoError(t, err)
	assert.Equal(t, "12\n", out)
}

func TestPrintEmptyQueryShowsError(t *testing.T) {
	setupEnv(t, `printf ''`)

	out, err := run(t, context.Background(), "print")
	require.NoError(t, err)
	assert.Equal(t, "Error\n", out)
}

func TestPrintLockBusy(t *testing.T) {
	e := setupEnv(t, `printf '3\n'`)
	l, err := lock.Acquire(e.lockFile)
	require.NoError(t, err)
	defer l.Release()

	out, err := run(t, context.Background(), "print")
	require.Error(t, err)
	assert.Equal(t, "Error\n", out)
	assert.Equal(t, exitLockBusy, exitCode(err))
}

func TestWatchPrintsUntilCancelled(t *testing.T) {
	setupEnv(t, `printf '4\n'`)
	t.Setenv("WATCH_INTERVAL", "20ms")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	out, err := run(t, ctx, "watch")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	for _, ln := range lines {
		assert.Equal(t, "4", ln)
	}
}

func TestTextfileNumericCount(t *testing.T) {
	e := setupEnv(t, `printf '      7\n'`)

	_, err := run(t, context.Background(), "textfile")
	require.NoError(t, err)

	b, err := os.ReadFile(e.textfile)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, `os_pending_updates{manager="pacman",type="all"} 7`)
	assert.Contains(t, out, "os_updates_scrape_success 1")
	assert.Contains(t, out, `os_updates_error{stage="pkgmgr"} 0`)
	assert.Contains(t, out, `os_updates_error{stage="parse"} 0`)
}

func TestTextfileSuccessLogsNoFailedStages(t *testing.T) {
	setupEnv(t, `printf '2\n'`)

	_, stderr, err := runCapture(t, context.Background(), "textfile")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "stages failed")
}

func TestTextfileRetrievalFailure(t *testing.T) {
	e := setupEnv(t, `printf ''`)

	_, stderr, err := runCapture(t, context.Background(), "textfile")
	require.NoError(t, err)
	assert.Contains(t, stderr, "stages failed")
	assert.Contains(t, stderr, "stages=[pkgmgr]")

	b, err := os.ReadFile(e.textfile)
	require.NoError(t, err)
	out := string(b)
	assert.NotContains(t, out, "os_pending_updates{")
	assert.Contains(t, out, "os_updates_scrape_success 0")
	assert.Contains(t, out, `os_updates_error{stage="pkgmgr"} 1`)
}

func TestTextfileNonNumericOutput(t *testing.T) {
	e := setupEnv(t, `printf 'locked\n'`)

	_, err := run(t, context.Background(), "textfile")
	require.NoError(t, err)

	b, err := os.ReadFile(e.textfile)
	require.NoError(t, err)
	assert.Contains(t, string(b), `os_updates_error{stage="parse"} 1`)
	assert.Contains(t, string(b), "os_updates_scrape_success 0")
}

func TestTextfileLockBusy(t *testing.T) {
	e := setupEnv(t, `printf '3\n'`)
	l, err := lock.Acquire(e.lockFile)
	require.NoError(t, err)
	defer l.Release()

	_, err = run(t, context.Background(), "textfile")
	require.Error(t, err)
	assert.Equal(t, exitLockBusy, exitCode(err))

	b, err := os.ReadFile(e.textfile)
	require.NoError(t, err)
	assert.Contains(t, string(b), `os_updates_error{stage="lock"} 1`)
}

func TestTextfileWriteFailure(t *testing.T) {
	e := setupEnv(t, `printf '3\n'`)
	// A regular file where the textfile directory should be.
	blocker := filepath.Dir(e.textfile)
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := run(t, context.Background(), "textfile")
	require.Error(t, err)
	assert.Equal(t, exitWrite, exitCode(err))
}

func TestVersion(t *testing.T) {
	t.Setenv("WATCH_INTERVAL", "0s")

	out, err := run(t, context.Background(), "version")
	require.NoError(t, err)
	assert.Equal(t, "dev (none)\n", out)
}

func TestInvalidConfig(t *testing.T) {
	setupEnv(t, `printf '3\n'`)
	t.Setenv("WATCH_INTERVAL", "-1s")

	_, err := run(t, context.Background(), "print")
	require.Error(t, err)
	assert.Equal(t, exitGeneric, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, exitGeneric, exitCode(assert.AnError))
	assert.Equal(t, exitWrite, exitCode(&exitError{code: exitWrite, err: assert.AnError}))
}

func TestTextfileUnsupportedManager(t *testing.T) {
	e := setupEnv(t, `printf '0\n'`)
	newCounter = func() *collector.Counter { return collector.NewCounter(collector.Unsupported) }

	_, err := run(t, context.Background(), "textfile")
	require.NoError(t, err)

	b, err := os.ReadFile(e.textfile)
	require.NoError(t, err)
	out := string(b)
	assert.NotContains(t, out, "os_pending_updates{")
	assert.Contains(t, out, "os_updates_scrape_success 0")
	assert.Contains(t, out, `os_updates_error{stage="pkgmgr"} 1`)
}
