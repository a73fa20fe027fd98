package lsh

// DataPointId identifies a stored vector inside a backend. Ids are
// assigned monotonically: the first insertion of a given vector's
// content receives the next free id, and subsequent inserts of the
// same content (e.g. the remaining L-1 per-table writes of one
// logical insert) reuse it.
type DataPointId = uint32

// Vector is a dense query or corpus data point.
type Vector = []float32
