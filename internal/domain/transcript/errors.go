package transcript

import "fmt"

// DecodeError marks an asset that cannot be opened or measured. It is fatal
// for the whole asset and never retried.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ParseError marks a chunk whose backend output could not be reduced to a
// usable entry array after every repair heuristic. It aborts the asset: a
// transcript silently missing a chunk is worse than a visible failure.
type ParseError struct {
	Chunk   int
	Offset  int    // byte offset of the underlying JSON failure, -1 if unknown
	Preview string // head of the offending payload, for diagnosis
	Err     error
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("chunk %d: parse transcription at offset %d: %v", e.Chunk, e.Offset, e.Err)
	}
	return fmt.Sprintf("chunk %d: parse transcription: %v", e.Chunk, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
