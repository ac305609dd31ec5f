package job

import (
	"context"
	"log"
	"time"

	"crypto-correlator/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type CycleRunner interface {
	RunCycle(ctx context.Context) domain.CycleResult
}

// CorrelationJob drives the correlation loop, sleeping a fixed interval after
// each cycle. A cycle never waits for new items; an empty cycle does nothing.
type CorrelationJob struct {
	tracer   trace.Tracer
	runner   CycleRunner
	interval time.Duration
}

func NewCorrelationJob(tracer trace.Tracer, runner CycleRunner, interval time.Duration) *CorrelationJob {
	if interval <= 0 {
		interval = 6 * time.Second
	}
	return &CorrelationJob{tracer: tracer, runner: runner, interval: interval}
}

// Start blocks until ctx is cancelled.
func (j *CorrelationJob) Start(ctx context.Context) {
	if j.runner == nil {
		log.Println("Correlation job disabled: no runner")
		<-ctx.Done()
		return
	}
	log.Printf("Correlation job starting (interval %s)", j.interval)

	for {
		j.runOnce(ctx)

		// The pause starts after the cycle finishes, however long it took.
		timer := time.NewTimer(j.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("Correlation job stopped")
			return
		case <-timer.C:
		}
	}
}

func (j *CorrelationJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "correlation-job.run-once")
	defer span.End()

	result := j.runner.RunCycle(ctx)
	if result.Worked() {
		log.Printf(
			"Correlation cycle %s complete posts=%d news=%d analyzed=%d coins=%d skipped=%d records=%d errors=%d",
			result.ID,
			result.PostsDrained,
			result.NewsDrained,
			result.ItemsAnalyzed,
			result.CoinsMentioned,
			result.CoinsSkipped,
			result.RecordsWritten,
			result.ErrorCount,
		)
	}
}
