package common

import (
	"errors"

	"google.golang.org/grpc/codes"
)

var (
	// Tenant errors
	ErrTenantNotFound                  = errors.New("tenant not found")
	ErrTenantUniqueConstraintViolation = errors.New("tenant unique constraint violation")
	ErrTenantResourceNameAlreadySet    = errors.New("tenant resource name is already set")

	// Database errors
	ErrDatabaseNotFound                  = errors.New("database not found")
	ErrDatabaseUniqueConstraintViolation = errors.New("database unique constraint violation")
	ErrDatabaseNameEmpty                 = errors.New("database name is empty")
	ErrDatabaseSoftDeleted               = errors.New("database soft deleted")

	// Collection errors
	ErrCollectionNotFound                  = errors.New("collection not found")
	ErrCollectionSoftDeleted               = errors.New("collection soft deleted")
	ErrCollectionIDFormat                  = errors.New("collection id format error")
	ErrCollectionNameEmpty                 = errors.New("collection name is empty")
	ErrCollectionUniqueConstraintViolation = errors.New("collection unique constraint violation")
	ErrCollectionDimensionMismatch         = errors.New("collection dimension mismatch on get_or_create")
	ErrCollectionMetricMismatch            = errors.New("collection distance metric mismatch on get_or_create")
	ErrCollectionVersionStale              = errors.New("collection version stale")
	ErrCollectionVersionInvalid            = errors.New("collection version invalid")
	ErrCollectionOffsetStale               = errors.New("collection log compaction offset stale")
	ErrCollectionHasLiveForks              = errors.New("collection still has live forks referencing its artifacts")
	ErrCollectionTooManyForks              = errors.New("collection entry has too many forks")

	// Segment errors
	ErrSegmentIDFormat                  = errors.New("segment id format error")
	ErrSegmentUniqueConstraintViolation = errors.New("unique constraint violation")
	ErrSegmentNotFound                  = errors.New("segment not found")

	// Metadata errors
	ErrUnknownMetadataValueType = errors.New("metadata value type not supported")

	// Lease errors
	ErrLeaseHeldByOther = errors.New("compaction lease is held by another worker")
	ErrLeaseNotFound    = errors.New("compaction lease not found")
	ErrLeaseExpired     = errors.New("compaction lease expired")

	// Log errors
	ErrLogRecordsPurged = errors.New("requested log offset has been purged")
	ErrLogBatchEmpty    = errors.New("append batch must contain at least one record")
	ErrLogDuplicateID   = errors.New("duplicate id within append batch")

	// Generic
	ErrInvalidArgument              = errors.New("invalid argument")
	ErrCompactionOffsetSomehowAhead = errors.New("invariant violated: compaction offset ahead of enumeration offset")
)

// Code maps a control-plane sentinel error to the RPC status code a gateway
// would surface it as (spec.md §6/§7). Unrecognized errors map to Internal so
// that invariant violations fail loudly instead of masquerading as something
// retryable.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrTenantNotFound),
		errors.Is(err, ErrDatabaseNotFound),
		errors.Is(err, ErrCollectionNotFound),
		errors.Is(err, ErrSegmentNotFound),
		errors.Is(err, ErrLeaseNotFound):
		return codes.NotFound
	case errors.Is(err, ErrTenantUniqueConstraintViolation),
		errors.Is(err, ErrDatabaseUniqueConstraintViolation),
		errors.Is(err, ErrCollectionUniqueConstraintViolation),
		errors.Is(err, ErrSegmentUniqueConstraintViolation):
		return codes.AlreadyExists
	case errors.Is(err, ErrCollectionSoftDeleted),
		errors.Is(err, ErrDatabaseSoftDeleted),
		errors.Is(err, ErrCollectionDimensionMismatch),
		errors.Is(err, ErrCollectionMetricMismatch),
		errors.Is(err, ErrCollectionHasLiveForks):
		return codes.FailedPrecondition
	case errors.Is(err, ErrCollectionVersionStale),
		errors.Is(err, ErrCollectionOffsetStale),
		errors.Is(err, ErrLeaseHeldByOther),
		errors.Is(err, ErrLeaseExpired):
		return codes.Aborted
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrDatabaseNameEmpty),
		errors.Is(err, ErrCollectionNameEmpty),
		errors.Is(err, ErrCollectionIDFormat),
		errors.Is(err, ErrSegmentIDFormat),
		errors.Is(err, ErrUnknownMetadataValueType),
		errors.Is(err, ErrLogBatchEmpty),
		errors.Is(err, ErrLogDuplicateID):
		return codes.InvalidArgument
	case errors.Is(err, ErrLogRecordsPurged):
		return codes.NotFound
	case errors.Is(err, ErrCollectionVersionInvalid),
		errors.Is(err, ErrCompactionOffsetSomehowAhead):
		return codes.Internal
	default:
		return codes.Internal
	}
}
