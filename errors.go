package lsh

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Index operations.
var (
	// ErrDim is returned when a vector's length does not match the
	// index's configured dimension.
	ErrDim = errors.New("lsh: dimension mismatch")

	// ErrNotFound names the missing-bucket condition. Index operations do
	// not return it: the query path treats a bucket key absent from a
	// table as an empty bucket.
	ErrNotFound = errors.New("lsh: bucket not found")

	// ErrNotFitted is returned by MIPS operations attempted before Fit.
	ErrNotFitted = errors.New("lsh: hasher not fitted")

	// ErrIndexOnly is returned by vector-recovery operations against an
	// index built with OnlyIndex().
	ErrIndexOnly = errors.New("lsh: index-only, vectors not stored")

	// ErrBackendIO is returned when the storage backend fails.
	ErrBackendIO = errors.New("lsh: backend I/O failure")

	// ErrSerdeFormat is returned when Dump/Load encounters malformed or
	// incompatible serialized state.
	ErrSerdeFormat = errors.New("lsh: serialization format error")

	// ErrInvalidParam is returned for invalid construction parameters.
	ErrInvalidParam = errors.New("lsh: invalid parameter")
)

// IndexError wraps an error with the operation that produced it.
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("lsh: %v", e.Err)
	}
	return fmt.Sprintf("lsh: %s: %v", e.Op, e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

func (e *IndexError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IndexError{Op: op, Err: err}
}
