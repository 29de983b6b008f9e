package core

import (
	"context"
	"log/slog"
	"time"
)

// EventAction names the operation an Event describes.
type EventAction string

const (
	ActionValidateRow EventAction = "validate_row"
	ActionEmitRecord  EventAction = "emit_record"
	ActionProcessFile EventAction = "process_file"
	ActionMoveFile    EventAction = "move_file"
	ActionNotify      EventAction = "notify"
	ActionFetchSchema EventAction = "fetch_schema"
)

// Event results.
const (
	ResultRejected       = "rejected"
	ResultCreated        = "created"
	ResultVersionCreated = "version_created"
	ResultFailed         = "failed"
	ResultImported       = "imported"
	ResultBroken         = "broken"
	ResultMovedImported  = "moved_to_imported"
	ResultMovedBroken    = "moved_to_broken"
	ResultSent           = "sent"
	ResultOK             = "ok"
)

// Event is one structured audit record. The engine emits one per row
// outcome and one per file outcome; the sink decides how to store it.
type Event struct {
	Time     time.Time
	Level    slog.Level
	Action   EventAction
	Result   string
	BatchID  string
	FileName string
	IDType   string
	IDValue  string
	Product  string
	Row      int
	Fields   map[string]any
}

// EventSink receives events.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}

// NopSink discards events.
type NopSink struct{}

// Emit implements EventSink.
func (NopSink) Emit(context.Context, Event) {}

// withKey copies the business key onto an event.
func (ev Event) withKey(k BusinessKey) Event {
	ev.IDType = k.IDType
	ev.IDValue = k.IDValue
	ev.Product = k.Product
	return ev
}
