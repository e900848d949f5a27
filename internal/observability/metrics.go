package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/quotalens/quotalens/internal/metrics"
)

// Registry holds the process collectors and the application metrics served on
// /metrics. It is nil until InitMetrics runs.
var Registry *prometheus.Registry

// InitMetrics builds a fresh registry with Go runtime and process collectors and
// registers the application collectors on it.
func InitMetrics(serviceName string) error {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
		Namespace: metricNamespace(serviceName),
	})); err != nil {
		return err
	}
	if err := metrics.Init(reg); err != nil {
		return err
	}

	Registry = reg
	return nil
}

func metricNamespace(serviceName string) string {
	if serviceName == "" {
		return "quotalens"
	}
	return serviceName
}
