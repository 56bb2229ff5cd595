package scanner

import "fmt"

// ParseError indicates a manifest or lockfile could not be parsed. It is
// reported per file and recorded as a scan limitation, never fatal.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AccessError indicates a path could not be read during scanning. The path
// is skipped and recorded as a limitation.
type AccessError struct {
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("access %s: %v", e.Path, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// ConcurrentModificationError indicates a remediation target changed between
// planning and execution. It fails the single action carrying it without
// aborting the rest of the plan.
type ConcurrentModificationError struct {
	Target string
	Reason string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("target %s modified concurrently: %s", e.Target, e.Reason)
}
