package hnsw

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector's length does not match
	// the graph's configured dimension.
	ErrDimensionMismatch = errors.New("hnsw: vector dimension mismatch")

	// ErrDuplicateID is returned by Insert when id already exists in the
	// graph.
	ErrDuplicateID = errors.New("hnsw: duplicate node id")

	// ErrEmptyID is returned by Insert when id is the empty string.
	ErrEmptyID = errors.New("hnsw: node id must not be empty")
)
