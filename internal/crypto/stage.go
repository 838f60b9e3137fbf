package crypto

// Stage is the streaming transducer contract every pipeline primitive
// implements: accept a bounded input chunk and return zero or more
// output chunks, with a terminal Finalize call that flushes any state
// held back across Push calls (padding, buffered blocks, and so on).
// Modeling each primitive this way lets the stream pipeline (C4) compose
// them by threading rather than by a class hierarchy, per DESIGN NOTES §9.
type Stage interface {
	Push(chunk []byte) ([]byte, error)
	Finalize() ([]byte, error)
}
