package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/R4VXN/updates-status/internal/collector"
	"github.com/R4VXN/updates-status/internal/config"
	"github.com/R4VXN/updates-status/internal/lock"
	"github.com/R4VXN/updates-status/internal/logging"
	"github.com/R4VXN/updates-status/internal/metrics"
	"github.com/R4VXN/updates-status/internal/systemd"
)

var newCounter = func() *collector.Counter {
	return collector.NewCounter(collector.DetectManager())
}

type app struct {
	cfg config.Config
	out io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:               "updates-status",
		Short:             "Print the number of upgradable packages for a status bar",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runPrint,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().Bool("json", false, "Log in JSON format")

	root.AddCommand(
		&cobra.Command{
			Use:   "print",
			Short: "Refresh the package database and print the update count once",
			Args:  cobra.NoArgs,
			RunE:  a.runPrint,
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Print the update count now and on every WATCH_INTERVAL",
			Args:  cobra.NoArgs,
			RunE:  a.runWatch,
		},
		&cobra.Command{
			Use:   "textfile",
			Short: "Write the update count to the node_exporter textfile directory",
			Args:  cobra.NoArgs,
			RunE:  a.runTextfile,
		},
		newInstallCmd(a),
		&cobra.Command{
			Use:   "uninstall",
			Short: "Remove the systemd service and timer",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return systemd.UninstallUnits()
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
				return nil
			},
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", Version, Commit)
			},
		},
	)
	return root
}

func newInstallCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install a systemd service and timer running the textfile command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			binary, _ := cmd.Flags().GetString("binary")
			if binary == "" {
				exe, err := os.Executable()
				if err != nil {
					return fmt.Errorf("resolve executable: %w", err)
				}
				binary = exe
			}
			if err := systemd.InstallUnits(binary); err != nil {
				return fmt.Errorf("install units: %w", err)
			}
			fmt.Fprintf(a.out, "installed %s textfile timer\n", binary)
			return nil
		},
	}
	cmd.Flags().String("binary", "", "Path used in ExecStart (defaults to this executable)")
	return cmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg
	a.out = cmd.OutOrStdout()

	level, format := cfg.LogLevel, cfg.LogFormat
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		format = "json"
	}
	logging.Setup(level, format, cmd.ErrOrStderr())
	return nil
}

// pkgmgrContext applies PKGMGR_TIMEOUT; zero keeps the call unbounded.
func (a *app) pkgmgrContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.PkgmgrTimeout > 0 {
		return context.WithTimeout(ctx, a.cfg.PkgmgrTimeout)
	}
	return context.WithCancel(ctx)
}

// count runs one poll under the lock. A busy lock yields ErrorText.
func (a *app) count(ctx context.Context) (string, error) {
	l, err := lock.Acquire(a.cfg.LockFile)
	if err != nil {
		return collector.ErrorText, err
	}
	defer l.Release()

	ctx, cancel := a.pkgmgrContext(ctx)
	defer cancel()
	return newCounter().Count(ctx), nil
}

func (a *app) runPrint(cmd *cobra.Command, args []string) error {
	s, err := a.count(cmd.Context())
	fmt.Fprintln(a.out, s)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return &exitError{code: exitLockBusy, err: err}
		}
		return err
	}
	return nil
}

func (a *app) runWatch(cmd *cobra.Command, args []string) error {
	log := logging.NewLogger("watch")
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t := time.NewTicker(a.cfg.WatchInterval)
	defer t.Stop()

	for {
		s, err := a.count(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.WithError(err).Warn("poll skipped")
		}
		fmt.Fprintln(a.out, s)

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (a *app) runTextfile(cmd *cobra.Command, args []string) error {
	log := logging.NewLogger("textfile")
	start := time.Now()
	reg := metrics.NewRegistry()
	reg.SetBuildInfo(Version, Commit, GoVersion)

	// lock
	lockStart := time.Now()
	l, err := lock.Acquire(a.cfg.LockFile)
	if err != nil {
		reg.SetStageError("lock", true)
		reg.SetScrapeSuccess(false)
		reg.SetStageDuration("lock", time.Since(lockStart))
		reg.SetRunDurations(time.Since(start))
		_ = metrics.WriteTextfileAtomic(a.cfg.TextfilePath(), reg.Gatherer(), a.cfg.FileMode)
		return &exitError{code: exitLockBusy, err: err}
	}
	defer l.Release()
	reg.SetStageError("lock", false)
	reg.SetStageDuration("lock", time.Since(lockStart))

	// collect
	pkgStart := time.Now()
	ctx, cancel := a.pkgmgrContext(cmd.Context())
	defer cancel()
	c := newCounter()
	display, perr := c.Retrieve(ctx)
	reg.SetStageError("pkgmgr", perr != nil)
	reg.SetStageDuration("pkgmgr", time.Since(pkgStart))

	n, ok := metrics.ParseCount(display)
	if perr == nil {
		reg.SetStageError("parse", !ok)
		if !ok {
			log.WithField("output", display).Warn("query output is not a count")
		}
	}
	if ok {
		reg.SetPending(c.Manager.Name, "all", n)
	}
	reg.SetScrapeSuccess(ok)

	reg.SetLastRun(time.Now())
	reg.SetRunDurations(time.Since(start))

	if failed := reg.FailedStages(); len(failed) > 0 {
		log.WithField("manager", c.Manager.Name).WithField("stages", failed).Warn("stages failed; no pending count exported")
	}

	if err := metrics.WriteTextfileAtomic(a.cfg.TextfilePath(), reg.Gatherer(), a.cfg.FileMode); err != nil {
		return &exitError{code: exitWrite, err: fmt.Errorf("write textfile: %w", err)}
	}
	log.WithField("path", a.cfg.TextfilePath()).WithField("pending", display).Debug("textfile written")
	return nil
}
