package cleanup

import (
	"context"
	"time"

	"github.com/chroma-core/controlplane/shared/otel"
	"github.com/pingcap/log"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const dlqMetricsInterval = 30 * time.Second

// DLQSizeSource is the slice of Coordinator the DLQ emitter needs.
type DLQSizeSource interface {
	GetCompactionDLQSize(ctx context.Context) (int64, error)
}

// StartDLQMetrics starts a background goroutine that periodically emits the
// compaction_dlq_size gauge (spec.md §4.3 step 2g).
func StartDLQMetrics(ctx context.Context, source DLQSizeSource) {
	log.Info("starting compaction DLQ metrics goroutine")

	dlqSizeGauge, err := otel.Meter.Int64Gauge(
		"compaction_dlq_size",
		metric.WithDescription("Number of collections with compaction failures (compaction_failure_count > 0)"),
		metric.WithUnit("{collections}"),
	)
	if err != nil {
		log.Error("failed to create compaction_dlq_size gauge", zap.Error(err))
		return
	}

	ticker := time.NewTicker(dlqMetricsInterval)
	defer ticker.Stop()

	emitDLQMetric(ctx, source, dlqSizeGauge)

	for {
		select {
		case <-ctx.Done():
			log.Info("stopping compaction DLQ metrics goroutine")
			return
		case <-ticker.C:
			emitDLQMetric(ctx, source, dlqSizeGauge)
		}
	}
}

func emitDLQMetric(ctx context.Context, source DLQSizeSource, gauge metric.Int64Gauge) {
	dlqSize, err := source.GetCompactionDLQSize(ctx)
	if err != nil {
		log.Error("failed to get compaction DLQ size", zap.Error(err))
		return
	}
	gauge.Record(ctx, dlqSize)
	log.Debug("emitted compaction DLQ size metric", zap.Int64("dlq_size", dlqSize))
}
