package restserver

import (
	"context"
	"errors"

	"github.com/chrissnell/tipstation/internal/types"
)

// ErrNoReading means no snapshot has been published yet
var ErrNoReading = errors.New("no reading available yet")

// Source answers "what is the latest reading" for GET /
type Source interface {
	Latest(ctx context.Context) (types.Snapshot, error)
}

// LatestReader is the read side of station state
type LatestReader interface {
	Latest() (types.Snapshot, bool)
}

// PushSource serves whatever the scheduler last published
type PushSource struct {
	State LatestReader
}

func (p PushSource) Latest(_ context.Context) (types.Snapshot, error) {
	snap, ok := p.State.Latest()
	if !ok {
		return types.Snapshot{}, ErrNoReading
	}
	return snap, nil
}

// Sampler takes a snapshot on demand
type Sampler interface {
	Sample(ctx context.Context) (types.Snapshot, error)
}

// SnapshotPublisher records a freshly taken snapshot
type SnapshotPublisher interface {
	Publish(s types.Snapshot)
}

// PullSource samples synchronously on every request and publishes the result
// so that /history reflects queried readings
type PullSource struct {
	Sampler Sampler
	State   SnapshotPublisher
}

func (p PullSource) Latest(ctx context.Context) (types.Snapshot, error) {
	snap, err := p.Sampler.Sample(ctx)
	if err != nil {
		return types.Snapshot{}, err
	}
	p.State.Publish(snap)
	return snap, nil
}
