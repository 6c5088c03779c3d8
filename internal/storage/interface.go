// Package storage defines the durable sinks and real-time publishers that
// station snapshots are forwarded to.
package storage

import (
	"context"
	"fmt"
	"regexp"

	"github.com/chrissnell/tipstation/internal/types"
)

// Sink is a durable table store for snapshots, keyed by snapshot ID
type Sink interface {
	// Append stores s in table
	Append(ctx context.Context, table string, s types.Snapshot) error
	// Query returns every record in table, oldest first
	Query(ctx context.Context, table string) ([]types.Snapshot, error)
	// DeleteAllExcept removes every record in table except keepID
	DeleteAllExcept(ctx context.Context, table string, keepID string) error
	Ping(ctx context.Context) error
	Close() error
}

// Publisher pushes each new snapshot to live consumers
type Publisher interface {
	Publish(ctx context.Context, s types.Snapshot) error
	Close() error
}

// SinkError reports a failed sink or publisher operation. The caller logs it
// and drops the snapshot; nothing is queued for retry.
type SinkError struct {
	Sink  string
	Op    string
	Table string
	Err   error
}

func (e *SinkError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s %s: %v", e.Sink, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Sink, e.Op, e.Table, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

var tableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateTableName rejects names that cannot be spliced into SQL unquoted
func ValidateTableName(table string) error {
	if !tableNameRE.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	return nil
}
