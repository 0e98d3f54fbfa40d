// Package objectstore is the narrow interface the control plane uses to talk
// to shared object storage (spec.md §6 "Object storage layout"): segment
// artifacts and collection-version snapshots are addressed by
// {collection_id}/{segment_id}/{role}/{generation} and are never mutated in
// place. Deletion is always deferred to GC.
package objectstore

import (
	"context"
	"fmt"
)

// Store is the object-storage adapter contract. Implementations must make
// Put durable before returning (no partial/async writes acknowledged early),
// matching the Log's durability contract.
type Store interface {
	// Put writes content at path, overwriting any existing object there
	// (paths here are always content- or generation-addressed, so
	// collisions are not expected).
	Put(ctx context.Context, path string, content []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	// Delete removes an artifact. Only ever invoked by GC, never from the
	// read or write paths.
	Delete(ctx context.Context, path string) error
	HasPrefix(ctx context.Context, prefix string) (bool, error)
}

// SegmentArtifactPath builds the canonical path for one file belonging to a
// segment generation, per spec.md §6.
func SegmentArtifactPath(collectionID, segmentID, role string, generation int64, fileName string) string {
	return fmt.Sprintf("%s/%s/%s/%d/%s", collectionID, segmentID, role, generation, fileName)
}

// VersionSnapshotPath builds the path for a collection-version snapshot file
// (the "segment_file_paths_snapshot" referenced by spec.md §3's Collection
// Version entity).
func VersionSnapshotPath(tenantID, databaseID, collectionID string, version int32) string {
	return fmt.Sprintf("tenant/%s/database/%s/collection/%s/versions/%d.snapshot", tenantID, databaseID, collectionID, version)
}
