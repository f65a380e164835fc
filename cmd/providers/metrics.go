package providers

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/metric/prometheus"
	"go.opentelemetry.io/otel/metric/global"
)

// SetupPrometheus configures the OpenTelemetry Prometheus exporter.
// Returns the Prometheus exporter HTTP handler.
func SetupPrometheus() (http.Handler, error) {
	exporter, err := otelprom.NewExportPipeline(otelprom.Config{
		Registerer: prometheus.DefaultRegisterer,
		Gatherer:   prometheus.DefaultGatherer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build OpenTelemetry Prometheus exporter: %w", err)
	}
	global.SetMeterProvider(exporter.MeterProvider())
	return exporter, nil
}
