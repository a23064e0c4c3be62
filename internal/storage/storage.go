package storage

import (
	"context"

	"lpAttribution/internal/model"
)

// Storage defines a sink for raw log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// SnapshotStore persists the attribution entities between runs. Saving
// replaces or upserts every entity in snap.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	LoadSnapshot(ctx context.Context) (model.Snapshot, error)
}

// SnapshotFile is a SnapshotStore backed by a JSONL file.
type SnapshotFile struct {
	Path string
}

func (f SnapshotFile) SaveSnapshot(_ context.Context, snap model.Snapshot) error {
	return WriteSnapshot(f.Path, snap)
}

// LoadSnapshot returns an empty snapshot when the file does not exist yet.
func (f SnapshotFile) LoadSnapshot(_ context.Context) (model.Snapshot, error) {
	snap, _, err := ReadSnapshot(f.Path)
	return snap, err
}
