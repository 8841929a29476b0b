package analytics

import (
	"context"
	"errors"
	"log/slog"

	"github.com/efreitasn/marketboard/internal/domain"
	"github.com/efreitasn/marketboard/internal/metrics"
	"github.com/efreitasn/marketboard/internal/stats"
)

// Path identifies which computation produced a result.
type Path string

const (
	PathNative   Path = "native"   // storage-side reducers
	PathFallback Path = "fallback" // recomputed from raw trades
)

// nativeOutcome is the classified result of a native attempt: either a
// value, or the signal that the back-end lacks a reducer.
type nativeOutcome[T any] struct {
	value       T
	unsupported bool
}

// classify turns the native call's error into an outcome. Only
// domain.ErrUnsupportedOperator becomes the unsupported variant; any other
// error is returned as is.
func classify[T any](value T, err error) (nativeOutcome[T], error) {
	switch {
	case errors.Is(err, domain.ErrUnsupportedOperator):
		return nativeOutcome[T]{unsupported: true}, nil
	case err != nil:
		return nativeOutcome[T]{}, err
	}
	return nativeOutcome[T]{value: value}, nil
}

// resilient runs native and, only on the unsupported outcome, fallback.
// Both must compute the same statistic. The fallback re-reads the log, so
// trades appended in between may be included.
func resilient[T any](
	ctx context.Context,
	logger *slog.Logger,
	operation string,
	native, fallback func(context.Context) (T, error),
) (T, Path, error) {
	v, err := native(ctx)
	out, err := classify(v, err)
	if err != nil {
		var zero T
		return zero, PathNative, err
	}
	if !out.unsupported {
		metrics.ObservePath(operation, string(PathNative))
		return out.value, PathNative, nil
	}

	logger.DebugContext(ctx, "storage lacks reducer, recomputing from trades",
		slog.String("operation", operation))

	v, err = fallback(ctx)
	if err != nil {
		var zero T
		return zero, PathFallback, err
	}
	metrics.ObservePath(operation, string(PathFallback))
	return v, PathFallback, nil
}

// groups evaluates q through the resilient strategy: the storage back-end
// first, the shared reducers over raw trades second.
func (e *Engine) groups(ctx context.Context, operation string, q domain.Query) ([]domain.Group, Path, error) {
	return resilient(ctx, e.logger, operation,
		func(ctx context.Context) ([]domain.Group, error) {
			return e.log.Aggregate(ctx, q)
		},
		func(ctx context.Context) ([]domain.Group, error) {
			return e.recompute(ctx, q)
		},
	)
}

// recompute evaluates q client-side from the raw trades it selects.
func (e *Engine) recompute(ctx context.Context, q domain.Query) ([]domain.Group, error) {
	trades, err := e.log.Find(ctx, q.Filter)
	if err != nil {
		return nil, err
	}
	return stats.Aggregate(trades, q.GroupBy, q.Accumulators), nil
}
