package scheduler

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chrissnell/tipstation/internal/storage"
	"github.com/chrissnell/tipstation/internal/types"
)

// Sampler produces one snapshot per call
type Sampler interface {
	Sample(ctx context.Context) (types.Snapshot, error)
}

// StatePublisher receives every snapshot the fast job takes
type StatePublisher interface {
	Publish(s types.Snapshot)
}

// Target is a sink table snapshots are written to
type Target struct {
	Sink  storage.Sink
	Table string
}

// FastAction samples, publishes the snapshot to station state, replaces the
// content of the real-time table with it and pushes it to live publishers.
// Any of realtime and publishers may be absent. Sink and publisher errors do
// not stop the remaining forwards; they are combined into the returned error.
func FastAction(sampler Sampler, state StatePublisher, realtime *Target, publishers []storage.Publisher, logger *zap.SugaredLogger) Action {
	return func(ctx context.Context) error {
		snap, err := sampler.Sample(ctx)
		if err != nil {
			return err
		}
		state.Publish(snap)
		logger.Debugw("published snapshot", "id", snap.ID, "temperature", snap.TemperatureC,
			"uv_index", snap.UVIndex, "precipitation", snap.PrecipitationMm)

		var errs error
		if realtime != nil {
			if err := realtime.Sink.Append(ctx, realtime.Table, snap); err != nil {
				errs = multierr.Append(errs, err)
			} else if err := realtime.Sink.DeleteAllExcept(ctx, realtime.Table, snap.ID); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
		for _, p := range publishers {
			errs = multierr.Append(errs, p.Publish(ctx, snap))
		}
		return errs
	}
}

// SlowAction samples and appends the snapshot to the archive table
func SlowAction(sampler Sampler, archive Target) Action {
	return func(ctx context.Context) error {
		snap, err := sampler.Sample(ctx)
		if err != nil {
			return err
		}
		return archive.Sink.Append(ctx, archive.Table, snap)
	}
}
