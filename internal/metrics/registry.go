package metrics

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the gauges written to the node_exporter textfile.
type Registry struct {
	reg *prometheus.Registry

	buildInfo     *prometheus.GaugeVec
	pending       *prometheus.GaugeVec
	stageError    *prometheus.GaugeVec
	stageDuration *prometheus.GaugeVec
	runDuration   prometheus.Gauge
	scrapeSuccess prometheus.Gauge
	lastRun       prometheus.Gauge

	stageErrors map[string]bool
}

func NewRegistry() *Registry {
	r := &Registry{
		reg:         prometheus.NewRegistry(),
		stageErrors: map[string]bool{},
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "os_updates_build_info",
			Help: "Build information for updates-status",
		}, []string{"version", "commit", "go_version"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "os_pending_updates",
			Help: "Number of pending updates",
		}, []string{"manager", "type"}),
		stageError: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "os_updates_error",
			Help: "Stage error indicator (one series per stage)",
		}, []string{"stage"}),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "os_updates_stage_duration_seconds",
			Help: "Run duration per stage",
		}, []string{"stage"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "os_updates_run_duration_seconds",
			Help: "Total run duration",
		}),
		scrapeSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "os_updates_scrape_success",
			Help: "1 if a numeric update count was collected",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "os_updates_last_run_timestamp_seconds",
			Help: "Last run end time (unix seconds)",
		}),
	}
	r.reg.MustRegister(r.buildInfo, r.pending, r.stageError, r.stageDuration,
		r.runDuration, r.scrapeSuccess, r.lastRun)
	return r
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) SetBuildInfo(version, commit, goVersion string) {
	r.buildInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

func (r *Registry) SetPending(manager, typ string, v int) {
	r.pending.WithLabelValues(manager, typ).Set(float64(v))
}

func (r *Registry) SetStageError(stage string, on bool) {
	r.stageErrors[stage] = on
	if on {
		r.stageError.WithLabelValues(stage).Set(1)
	} else {
		r.stageError.WithLabelValues(stage).Set(0)
	}
}

// FailedStages returns the stages currently flagged as errored, sorted.
func (r *Registry) FailedStages() []string {
	var out []string
	for stage, on := range r.stageErrors {
		if on {
			out = append(out, stage)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Registry) SetScrapeSuccess(ok bool) {
	if ok {
		r.scrapeSuccess.Set(1)
	} else {
		r.scrapeSuccess.Set(0)
	}
}

func (r *Registry) SetStageDuration(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Set(d.Seconds())
}

func (r *Registry) SetRunDurations(total time.Duration) {
	r.runDuration.Set(total.Seconds())
	r.SetStageDuration("total", total)
}

func (r *Registry) SetLastRun(t time.Time) {
	r.lastRun.Set(float64(t.Unix()))
}

// ParseCount converts display text such as "12" or "     3" into a
// non-negative count. ok is false for anything else, ErrorText included.
func ParseCount(display string) (n int, ok bool) {
	n, err := strconv.Atoi(strings.TrimSpace(display))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
