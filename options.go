package vecann

import (
	"context"
	"log/slog"
	"time"

	"github.com/hupe1980/vecann/distance"
	"github.com/hupe1980/vecann/matrix"
)

// options holds the settings every index builder shares.
type options struct {
	dimension int
	metric    distance.Metric
	seed      *int64
	logger    *Logger
	metrics   MetricsCollector
}

func defaultOptions(dimension int) options {
	return options{
		dimension: dimension,
		metric:    distance.MetricL2,
	}
}

func (o options) log() *Logger {
	if o.logger == nil {
		return NoopLogger()
	}
	return o.logger
}

func (o options) collector() MetricsCollector {
	if o.metrics == nil {
		return NoopMetricsCollector{}
	}
	return o.metrics
}

// slogger returns the logger handed down to the index packages.
func (o options) slogger() *slog.Logger {
	return o.logger.slogger()
}

// checkDimension verifies that data matches the configured dimension.
// A dimension of 0 accepts any data.
func (o options) checkDimension(data *matrix.Matrix[float32]) error {
	if data == nil {
		return ErrEmptyDataset
	}
	if o.dimension > 0 && data.Rows() > 0 && data.Cols() != o.dimension {
		return &ErrDimensionMismatch{Expected: o.dimension, Actual: data.Cols()}
	}
	return nil
}

// build runs fn and records its outcome.
func build[T Index](ctx context.Context, o options, kind Kind, data *matrix.Matrix[float32], fn func() (T, error)) (T, error) {
	start := time.Now()

	idx, err := func() (T, error) {
		if err := o.checkDimension(data); err != nil {
			var zero T
			return zero, err
		}
		return fn()
	}()
	err = translateError(err)

	n, dim := 0, 0
	if data != nil {
		n, dim = data.Rows(), data.Cols()
	}
	elapsed := time.Since(start)
	o.log().LogBuild(ctx, kind, n, dim, elapsed, err)
	o.collector().RecordBuild(kind, n, elapsed, err)

	return idx, err
}
