package core

import "time"

// Recorder receives counters for monitoring. Implementations must be safe
// for concurrent use; files are processed in parallel.
type Recorder interface {
	RowAccepted(merged bool)
	RowRejected(kind ErrorKind)
	FileProcessed(d Disposition)
	SchemaFetched(err error)
	BatchCompleted(d time.Duration, err error)
}

// NopRecorder discards all measurements.
type NopRecorder struct{}

func (NopRecorder) RowAccepted(bool) {}
func (NopRecorder) RowRejected(ErrorKind) {}
func (NopRecorder) FileProcessed(Disposition) {}
func (NopRecorder) SchemaFetched(error) {}
func (NopRecorder) BatchCompleted(time.Duration, error) {}
