package types

import "fmt"

// IngestError wraps errors from the telemetry link with additional context.
type IngestError struct {
	Err         error
	Message     string
	Recoverable bool
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest error: %s: %v", e.Message, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}
