package collector

import (
	"bufio"
	"context"
	"io"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// DefaultShell runs the refresh and query command lines.
const DefaultShell = "/bin/sh"

func hasBin(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// bestEffort runs fn and drops its error after logging it at debug level.
// Used for steps whose failure must never reach the caller.
func bestEffort(log *logrus.Entry, step string, fn func() error) {
	if err := fn(); err != nil {
		log.WithError(err).WithField("step", step).Debug("best-effort step failed")
	}
}

// runDiscard runs line with stdout and stderr connected to the null device.
func runDiscard(ctx context.Context, shell, line string) error {
	cmd := exec.CommandContext(ctx, shell, "-c", line)
	cmd.Stdout, cmd.Stderr = nil, nil
	return cmd.Run()
}

// readFirstLine starts line, reads at most limit bytes up to and including
// the first newline from its stdout, then closes the pipe and reaps the
// process. A child still writing gets SIGPIPE. The exit status of the
// command is ignored.
func readFirstLine(ctx context.Context, shell, line string, limit int) (string, error) {
	cmd := exec.CommandContext(ctx, shell, "-c", line)
	cmd.Stderr = nil
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", &RetrievalError{Stage: StageStart, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return "", &RetrievalError{Stage: StageStart, Err: err}
	}

	buf := make([]byte, 0, limit)
	r := bufio.NewReader(stdout)
	var rerr error
	for len(buf) < limit {
		b, err := r.ReadByte()
		if err != nil {
			if err != io.EOF {
				rerr = err
			}
			break
		}
		buf = append(buf, b)
		if b == '\n' {
			break
		}
	}

	_ = stdout.Close()
	_ = cmd.Wait()

	if len(buf) == 0 {
		if rerr != nil {
			return "", &RetrievalError{Stage: StageRead, Err: rerr}
		}
		return "", &RetrievalError{Stage: StageEmpty}
	}
	return string(buf), nil
}
