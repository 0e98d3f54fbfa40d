// Package store is the distributed-mode backend for pkg/log: a Postgres-
// backed, append-only per-collection record log. It is grounded on
// pkg/log/repository/log.go's InsertRecords/PullRecords/GetBoundsForCollection
// transaction shapes, re-expressed with hand-written SQL via pgx directly —
// the teacher's queries are generated by sqlc from a schema/queries pair
// that isn't part of the retrieved pack, so the same statements are written
// against *pgxpool.Pool here instead of through generated *log.Queries.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	chromalog "github.com/chroma-core/controlplane/pkg/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ chromalog.Log = (*Store)(nil)

// Append mirrors LogRepository.InsertRecords: lock the collection row (or
// create it on first write), assign contiguous offsets starting right after
// the current enumeration offset, insert every record in the batch, then
// bump the enumeration offset — all inside one transaction so Enumerate
// never observes a partial batch.
func (s *Store) Append(ctx context.Context, collectionID string, records []chromalog.Record) (firstOffset, lastOffset int64, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Error("failed to begin transaction for log append", zap.Error(err), zap.String("collection_id", collectionID))
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	var enumOffset int64
	var sealed bool
	row := tx.QueryRow(ctx, `SELECT record_enumeration_offset_position, is_sealed FROM log_collection WHERE id = $1 FOR UPDATE`, collectionID)
	scanErr := row.Scan(&enumOffset, &sealed)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		enumOffset = 0
		sealed = false
		if _, err = tx.Exec(ctx, `INSERT INTO log_collection (id, record_enumeration_offset_position, record_compaction_offset_position) VALUES ($1, 0, 0)`, collectionID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				err = status.Error(codes.AlreadyExists, fmt.Sprintf("duplicate log_collection row: %s", pgErr.Detail))
			}
			return 0, 0, err
		}
	} else if scanErr != nil {
		err = scanErr
		return 0, 0, err
	}

	if sealed {
		return 0, 0, nil
	}

	firstOffset = enumOffset + 1
	batch := &pgx.Batch{}
	for i, rec := range records {
		offset := firstOffset + int64(i)
		patchJSON, marshalErr := marshalMetadataPatch(rec.MetadataPatch)
		if marshalErr != nil {
			err = marshalErr
			return 0, 0, err
		}
		batch.Queue(
			`INSERT INTO record_log (collection_id, "offset", op, record_id, embedding, document, metadata_patch_json, timestamp) VALUES ($1,$2,$3,$4,$5,$6,$7,extract(epoch from now())*1e9)`,
			collectionID, offset, int16(rec.Op), rec.ID, embeddingBytes(rec.Embedding), rec.Document, patchJSON,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for range records {
		if _, execErr := br.Exec(); execErr != nil {
			br.Close()
			var pgErr *pgconn.PgError
			if errors.As(execErr, &pgErr) && pgErr.Code == "23505" {
				err = status.Error(codes.AlreadyExists, fmt.Sprintf("duplicate key error while inserting into record_log: %s", pgErr.Detail))
				return 0, 0, err
			}
			err = execErr
			return 0, 0, err
		}
	}
	if closeErr := br.Close(); closeErr != nil {
		err = closeErr
		return 0, 0, err
	}

	lastOffset = firstOffset + int64(len(records)) - 1
	if _, err = tx.Exec(ctx, `UPDATE log_collection SET record_enumeration_offset_position = $2 WHERE id = $1`, collectionID, lastOffset); err != nil {
		return 0, 0, err
	}

	return firstOffset, lastOffset, nil
}

// Enumerate mirrors LogRepository.PullRecords: relies on records coming
// back ordered by offset to detect that the requested prefix has already
// been purged by ScrubCompactedPrefix.
func (s *Store) Enumerate(ctx context.Context, collectionID string, fromOffset int64, limit int) (records []chromalog.Record, nextOffset, headOffset int64, err error) {
	rows, err := s.pool.Query(ctx,
		`SELECT "offset", op, record_id, embedding, document, metadata_patch_json FROM record_log WHERE collection_id = $1 AND "offset" >= $2 ORDER BY "offset" ASC LIMIT $3`,
		collectionID, fromOffset, limit)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	var firstSeen, lastSeen int64
	for rows.Next() {
		var offset int64
		var op int16
		var recID string
		var embedding []byte
		var document *string
		var patchJSON *string
		if err = rows.Scan(&offset, &op, &recID, &embedding, &document, &patchJSON); err != nil {
			return nil, 0, 0, err
		}
		patch, unmarshalErr := unmarshalMetadataPatch(patchJSON)
		if unmarshalErr != nil {
			return nil, 0, 0, unmarshalErr
		}
		if len(records) == 0 {
			firstSeen = offset
		}
		records = append(records, chromalog.Record{
			Op:            chromalog.Op(op),
			ID:            recID,
			Embedding:     floatsFromBytes(embedding),
			Document:      document,
			MetadataPatch: patch,
		})
		lastSeen = offset
	}
	if err = rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	// Relies on records being ordered by offset: if the first row returned
	// doesn't match fromOffset, the requested prefix has already been
	// scrubbed by ScrubCompactedPrefix.
	if len(records) > 0 && firstSeen != fromOffset {
		return nil, 0, 0, status.Error(codes.NotFound, "some entries have been purged")
	}

	head, err := s.GetHead(ctx, collectionID)
	if err != nil {
		return nil, 0, 0, err
	}

	if len(records) == 0 {
		compacted, compErr := s.getLastCompactedOffset(ctx, collectionID)
		if compErr != nil && !errors.Is(compErr, pgx.ErrNoRows) {
			return nil, 0, 0, compErr
		}
		if fromOffset <= compacted {
			return nil, 0, 0, status.Error(codes.NotFound, "some entries have been purged")
		}
		return nil, fromOffset, head, nil
	}

	return records, lastSeen + 1, head, nil
}

func (s *Store) getLastCompactedOffset(ctx context.Context, collectionID string) (int64, error) {
	var offset int64
	err := s.pool.QueryRow(ctx, `SELECT record_compaction_offset_position FROM log_collection WHERE id = $1`, collectionID).Scan(&offset)
	return offset, err
}

func (s *Store) GetHead(ctx context.Context, collectionID string) (int64, error) {
	var offset int64
	err := s.pool.QueryRow(ctx, `SELECT record_enumeration_offset_position FROM log_collection WHERE id = $1`, collectionID).Scan(&offset)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return offset, err
}

// ScrubCompactedPrefix deletes records below upToOffset and bumps the
// collection's compaction offset; both are idempotent against a repeated
// call with the same or smaller offset.
func (s *Store) ScrubCompactedPrefix(ctx context.Context, collectionID string, upToOffset int64) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM record_log WHERE collection_id = $1 AND "offset" < $2`, collectionID, upToOffset); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE log_collection SET record_compaction_offset_position = GREATEST(record_compaction_offset_position, $2) WHERE id = $1`,
		collectionID, upToOffset); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ForkRecords mirrors LogRepository.ForkRecords: the target collection
// shares the source's committed log range by reference (no row copy).
// pkg/sysdb/coordinator.ForkCollection does not call it; it copies the
// offsets it is given onto the target collection row.
func (s *Store) ForkRecords(ctx context.Context, sourceCollectionID, targetCollectionID string) (compactionOffset, enumerationOffset int64, err error) {
	tx, txErr := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if txErr != nil {
		return 0, 0, txErr
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	var sourceEnum, sourceCompacted int64
	if err = tx.QueryRow(ctx,
		`SELECT record_enumeration_offset_position, record_compaction_offset_position FROM log_collection WHERE id = $1`,
		sourceCollectionID).Scan(&sourceEnum, &sourceCompacted); err != nil {
		return 0, 0, err
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO log_collection (id, record_enumeration_offset_position, record_compaction_offset_position) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET record_enumeration_offset_position = EXCLUDED.record_enumeration_offset_position, record_compaction_offset_position = EXCLUDED.record_compaction_offset_position`,
		targetCollectionID, sourceEnum, sourceCompacted); err != nil {
		return 0, 0, err
	}

	return sourceCompacted, sourceEnum, nil
}

func marshalMetadataPatch(patch map[string]interface{}) (*string, error) {
	if len(patch) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func unmarshalMetadataPatch(s *string) (map[string]interface{}, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(*s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func embeddingBytes(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	b := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		bits := math.Float32bits(f)
		b[i*4] = byte(bits)
		b[i*4+1] = byte(bits >> 8)
		b[i*4+2] = byte(bits >> 16)
		b[i*4+3] = byte(bits >> 24)
	}
	return b
}

func floatsFromBytes(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}
