package collector

// Manager is a fixed refresh/query command pair for one package manager.
// Refresh and Query are shell command lines.
type Manager struct {
	Name    string
	Binary  string
	Refresh string
	Query   string
}

var (
	Pacman = Manager{
		Name:    "pacman",
		Binary:  "pacman",
		Refresh: `pacman -Sy > /dev/null 2>&1`,
		Query:   `pacman -Qu 2>/dev/null | wc -l`,
	}

	// apt list prints a "Listing..." header; only package lines contain '/'.
	APT = Manager{
		Name:    "apt",
		Binary:  "apt-get",
		Refresh: `apt-get update > /dev/null 2>&1`,
		Query:   `LANG=C apt list --upgradable 2>/dev/null | grep -c /`,
	}

	DNF = Manager{
		Name:    "dnf",
		Binary:  "dnf",
		Refresh: `dnf -q makecache > /dev/null 2>&1`,
		Query:   `LANG=C dnf -q list --upgrades 2>/dev/null | tail -n +2 | wc -l`,
	}

	YUM = Manager{
		Name:    "yum",
		Binary:  "yum",
		Refresh: `yum -q makecache > /dev/null 2>&1`,
		Query:   `LANG=C yum -q list updates 2>/dev/null | tail -n +2 | wc -l`,
	}

	// zypper lu rows start with the status column "v".
	Zypper = Manager{
		Name:    "zypper",
		Binary:  "zypper",
		Refresh: `zypper -q refresh > /dev/null 2>&1`,
		Query:   `LANG=C zypper -q lu 2>/dev/null | grep -c '^v '`,
	}
)

// Unsupported stands in when no preset binary is installed. Its query prints
// nothing, so the counter reports ErrorText instead of a false "0".
var Unsupported = Manager{
	Name:    "unsupported",
	Refresh: "true",
	Query:   "true",
}

// Managers lists the presets in detection order.
var Managers = []Manager{Pacman, APT, DNF, YUM, Zypper}

// DetectManager returns the first preset whose binary is on PATH, or
// Unsupported.
func DetectManager() Manager {
	return detectManager(hasBin)
}

func detectManager(has func(string) bool) Manager {
	for _, m := range Managers {
		if has(m.Binary) {
			return m
		}
	}
	return Unsupported
}
