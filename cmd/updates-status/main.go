package main

import (
	"errors"
	"os"

	"github.com/R4VXN/updates-status/internal/logging"
)

var (
	Version   = "dev"
	Commit    = "none"
	GoVersion = "unknown"
)

// Process exit codes.
const (
	exitGeneric  = 1
	exitWrite    = 20
	exitLockBusy = 75
)

// exitError carries a process exit code through cobra's RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	code := exitCode(err)
	logging.NewLogger("cli").WithError(err).WithField("code", code).Error("command failed")
	return code
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitGeneric
}
