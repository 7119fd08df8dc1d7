package systemd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

const (
	serviceName = "updates-status.service"
	timerName   = "updates-status.timer"
)

var (
	// UnitDir is where the units are written.
	UnitDir = "/etc/systemd/system"

	// systemctl is best-effort; install and uninstall never fail on it.
	systemctl = func(args ...string) error {
		return exec.Command("systemctl", args...).Run()
	}
)

// InstallUnits writes the textfile service and timer for binary and enables
// the timer.
func InstallUnits(binary string) error {
	if err := os.MkdirAll(UnitDir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(UnitDir, serviceName), []byte(ServiceUnit(binary)), 0644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(UnitDir, timerName), []byte(timerUnit), 0644); err != nil {
		return err
	}
	_ = systemctl("daemon-reload")
	_ = systemctl("enable", "--now", timerName)
	return nil
}

func UninstallUnits() error {
	_ = systemctl("disable", "--now", timerName)
	for _, name := range []string{serviceName, timerName} {
		if err := os.Remove(filepath.Join(UnitDir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	_ = systemctl("daemon-reload")
	return nil
}

func ServiceUnit(binary string) string {
	return fmt.Sprintf(serviceUnit, binary)
}

var serviceUnit = `[Unit]
Description=updates-status textfile (oneshot)
Wants=network-online.target
After=network-online.target

[Service]
Type=oneshot
EnvironmentFile=-/etc/updates-status.env
ExecStart=%s textfile

NoNewPrivileges=yes
PrivateTmp=yes
ProtectSystem=full
ProtectHome=yes
ProtectControlGroups=yes
ProtectKernelTunables=yes
ProtectKernelModules=yes
LockPersonality=yes
RestrictRealtime=yes
SystemCallArchitectures=native

# package databases + metrics + lock
ReadWritePaths=/var/lib /var/cache /run /tmp

[Install]
WantedBy=multi-user.target
`

var timerUnit = `[Unit]
Description=Count pending package updates periodically

[Timer]
OnBootSec=5m
OnUnitActiveSec=1h
RandomizedDelaySec=5m
Unit=updates-status.service

[Install]
WantedBy=timers.target
`
