package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Process holds metrics that describe the binary itself rather than a module.
type Process struct {
	BuildInfo *prometheus.GaugeVec
}

// NewProcess registers process-level metrics for the named binary.
func NewProcess(service, version string) *Process {
	p := &Process{
		BuildInfo: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pgfnsync_build_info",
			Help: "Build information for the running binary",
		}, []string{"service", "version"}),
	}
	p.BuildInfo.WithLabelValues(service, version).Set(1)
	return p
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
