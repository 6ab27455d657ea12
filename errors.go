package sampleidx

import (
	"errors"
	"fmt"

	"github.com/hupe1980/sampleidx/query"
	"github.com/hupe1980/sampleidx/schema"
	"github.com/hupe1980/sampleidx/store"
)

var (
	// ErrNotFound is returned when a sample index row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrQuery is returned when reading or filtering stored entries fails.
	ErrQuery = errors.New("query failed")
	// ErrInvalidQuery is returned for variant queries the index cannot answer.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInexactCount is returned by Count when the index only answers part
	// of the query. Use Query and apply the remaining filters instead.
	ErrInexactCount = errors.New("query not answered exactly by the index")
	// ErrClosed is returned by operations on a closed DB.
	ErrClosed = errors.New("sample index closed")
	// ErrInvalidArgument is returned for missing or invalid constructor arguments.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrSchemaMismatch indicates that stored entries were written with another
// schema version than the one of the DB.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrSchemaMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrSchemaMismatch) Error() string {
	return fmt.Sprintf("schema version mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrSchemaMismatch) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Schema mismatches are reported as such even inside query errors.
	var vm *schema.VersionMismatchError
	if errors.As(err, &vm) {
		return &ErrSchemaMismatch{Expected: vm.Expected, Actual: vm.Actual, cause: err}
	}
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, query.ErrInvalidQuery) {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if errors.Is(err, store.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if errors.Is(err, store.ErrQuery) {
		return fmt.Errorf("%w: %w", ErrQuery, err)
	}
	return err
}
