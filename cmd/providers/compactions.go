package providers

import (
	"go.loamdb.org/loam/pkg/compaction"
	"go.loamdb.org/loam/pkg/dispatch"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// NewCompactionMetrics builds the dispatch queue instruments.
func NewCompactionMetrics(m metric.Meter) (*compaction.Metrics, error) {
	return compaction.NewMetrics(m)
}

// NewRegistry builds the execution queue registry and hooks up the
// queued-count observer.
func NewRegistry(
	log *zap.Logger,
	m metric.Meter,
	metrics *compaction.Metrics,
) (*compaction.Registry, error) {
	registry := compaction.NewRegistry(log.Named("compactions"), metrics)
	if err := registry.ObserveQueued(m); err != nil {
		return nil, err
	}
	return registry, nil
}

// NewDispatchServer builds the worker-facing dispatch API.
func NewDispatchServer(log *zap.Logger, registry *compaction.Registry) *dispatch.Server {
	return &dispatch.Server{
		Registry: registry,
		Log:      log.Named("dispatch"),
	}
}
