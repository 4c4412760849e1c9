// Package analysis coordinates triggering, polling, and collection of
// engine verdicts for one artifact.
package analysis

import (
	"fmt"

	"github.com/sandia-project/sandia-go/internal/engine"
)

// TriggerError means work could not be submitted to an engine. Permanent
// for the job; never retried automatically.
type TriggerError struct {
	Engine engine.Kind
	Err    error
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("trigger %s: %v", e.Engine, e.Err)
}

func (e *TriggerError) Unwrap() error { return e.Err }

// StorageError means the result store itself failed while reading an
// engine's result object.
type StorageError struct {
	Engine engine.Kind
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("read %s result: %v", e.Engine, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ResultParseError means the engine wrote a result object this system
// cannot interpret. Always a contract violation on the engine's side.
type ResultParseError struct {
	Engine engine.Kind
	Err    error
}

func (e *ResultParseError) Error() string {
	return fmt.Sprintf("parse %s result: %v", e.Engine, e.Err)
}

func (e *ResultParseError) Unwrap() error { return e.Err }

// TimeoutError means no terminal outcome arrived within the attempt or
// deadline budget. Distinguished from failure: the remote work may still
// finish later, this system just stopped waiting.
type TimeoutError struct {
	Engine   engine.Kind
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s result not ready after %d attempts", e.Engine, e.Attempts)
}
