package compaction

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the dispatch instruments shared by all queues.
type Metrics struct {
	submits  metric.Int64Counter
	reserves metric.Int64Counter
	cancels  metric.Int64Counter
}

// NewMetrics builds the queue counters on the given meter.
func NewMetrics(m metric.Meter) (*Metrics, error) {
	metrics := new(Metrics)
	var err error
	metrics.submits, err = m.NewInt64Counter("compaction_jobs_submitted")
	if err != nil {
		return nil, err
	}
	metrics.reserves, err = m.NewInt64Counter("compaction_jobs_reserved")
	if err != nil {
		return nil, err
	}
	metrics.cancels, err = m.NewInt64Counter("compaction_jobs_canceled")
	if err != nil {
		return nil, err
	}
	return metrics, nil
}

func queueLabel(id QueueID) attribute.KeyValue {
	return attribute.String("queue", string(id))
}

func (m *Metrics) submitted(id QueueID) {
	if m == nil {
		return
	}
	m.submits.Add(context.Background(), 1, queueLabel(id))
}

func (m *Metrics) reserved(id QueueID) {
	if m == nil {
		return
	}
	m.reserves.Add(context.Background(), 1, queueLabel(id))
}

func (m *Metrics) canceled(id QueueID, n int) {
	if m == nil {
		return
	}
	m.cancels.Add(context.Background(), int64(n), queueLabel(id))
}
