package collector

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/R4VXN/updates-status/internal/logging"
)

const (
	// ErrorText is shown instead of a count when the query yields nothing.
	ErrorText = "Error"

	// LineCap bounds the first line read from the query output.
	LineCap = 9

	// ResultCap bounds the returned display text.
	ResultCap = 19
)

// Retrieval failure stages.
const (
	StageStart = "start"
	StageRead  = "read"
	StageEmpty = "empty"
)

// RetrievalError reports that the query command produced no usable line.
type RetrievalError struct {
	Stage string
	Err   error
}

func (e *RetrievalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("update count retrieval failed (%s)", e.Stage)
	}
	return fmt.Sprintf("update count retrieval failed (%s): %v", e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Counter reports the number of upgradable packages for one manager.
// A zero Shell means DefaultShell; a nil Log means the "collector" logger.
type Counter struct {
	Manager Manager
	Shell   string
	Log     *logrus.Entry
}

func NewCounter(m Manager) *Counter {
	return &Counter{Manager: m, Shell: DefaultShell, Log: logging.NewLogger("collector")}
}

// GetUpdateCount refreshes the pacman database and returns the number of
// upgradable packages as display text, or ErrorText.
func GetUpdateCount() string {
	return NewCounter(Pacman).GetUpdateCount()
}

func (c *Counter) GetUpdateCount() string {
	return c.Count(context.Background())
}

// Count is GetUpdateCount with a context. The result is always either text
// derived from the query output or ErrorText.
func (c *Counter) Count(ctx context.Context) string {
	s, err := c.Retrieve(ctx)
	if err != nil {
		return ErrorText
	}
	return s
}

// Retrieve runs the refresh command best-effort, then the query command, and
// returns its first line without the trailing newline, bounded to ResultCap.
// Failures of the query are returned as *RetrievalError.
func (c *Counter) Retrieve(ctx context.Context) (string, error) {
	log := c.logger().WithField("manager", c.Manager.Name)
	shell := c.shell()

	bestEffort(log, "refresh", func() error {
		return runDiscard(ctx, shell, c.Manager.Refresh)
	})

	line, err := readFirstLine(ctx, shell, c.Manager.Query, LineCap)
	if err != nil {
		log.WithError(err).Debug("query produced no output")
		return "", err
	}
	if line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	return truncate(line, ResultCap), nil
}

func (c *Counter) shell() string {
	if c.Shell == "" {
		return DefaultShell
	}
	return c.Shell
}

func (c *Counter) logger() *logrus.Entry {
	if c.Log == nil {
		return logging.NewLogger("collector")
	}
	return c.Log
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
