package dao

import (
	"errors"

	"github.com/sansecao/spec-workflow-mcp-pro/model"
)

// Common, reusable DAO errors. ErrNotFound aliases the model sentinel so that
// storage misses surface to callers of the approval store unchanged.
var (
	// ErrNotFound is returned when the requested entity does not exist in the
	// underlying storage.
	ErrNotFound = model.ErrNotFound

	// ErrInvalidID indicates that the supplied ID/key is empty or otherwise
	// invalid.
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when the caller attempts to persist a nil
	// pointer.
	ErrNilEntity = errors.New("dao: nil entity")
)
