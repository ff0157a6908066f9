package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// InstallTotal counts DeploymentPipeline runs on the agent.
	// result: success/failed, kind: errdefs kind label ("" on success)
	InstallTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driverfleet_install_total",
			Help: "Total number of driver package installs attempted on this node.",
		},
		[]string{"result", "kind"},
	)

	// InstallDuration records the wall time of a whole pipeline run, download included.
	InstallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driverfleet_install_duration_seconds",
			Help:    "Duration of driver package installs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"result"},
	)

	// CatalogRefreshTotal counts catalog refreshes by the source of the resulting snapshot.
	CatalogRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driverfleet_catalog_refresh_total",
			Help: "Total number of catalog refreshes, by snapshot source (remote/baseline).",
		},
		[]string{"source"},
	)

	// DiscoveredNodes is the size of the roster after the last discovery cycle.
	DiscoveredNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "driverfleet_discovered_nodes",
			Help: "Number of nodes that answered both probes in the last discovery cycle.",
		},
	)

	// ProbeTotal counts discovery probes. probe: icmp/http, result: ok/failed
	ProbeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driverfleet_probe_total",
			Help: "Total number of discovery probes sent.",
		},
		[]string{"probe", "result"},
	)
)

func init() {
	prometheus.MustRegister(InstallTotal)
	prometheus.MustRegister(InstallDuration)
	prometheus.MustRegister(CatalogRefreshTotal)
	prometheus.MustRegister(DiscoveredNodes)
	prometheus.MustRegister(ProbeTotal)
}

// Result maps a success flag to the "result" label value.
func Result(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}
