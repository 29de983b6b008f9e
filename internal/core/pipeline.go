package core

// pipeline.go runs one source file through mapping, validation and
// emission.
//
// Rows are processed strictly in file order so that two rows sharing a
// business key merge against each other in that order. A file is always
// processed to completion: cancellation of the caller's context does not
// stop the row loop midway.

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// FileProcessor classifies and emits the rows of one file.
type FileProcessor struct {
	mapper   *ColumnMapper
	fixed    FixedSchema
	engine   *Engine
	events   EventSink
	recorder Recorder
	now      func() time.Time
}

// ProcessorConfig wires a FileProcessor.
type ProcessorConfig struct {
	Mapping  map[string]string // source header -> canonical name
	Fixed    FixedSchema
	Engine   *Engine
	Events   EventSink // nil discards events
	Recorder Recorder  // nil discards measurements
	Now      func() time.Time
}

// NewFileProcessor creates a processor from cfg.
func NewFileProcessor(cfg ProcessorConfig) *FileProcessor {
	p := &FileProcessor{
		mapper:   NewColumnMapper(cfg.Mapping, cfg.Fixed.Sourced().Names()...),
		fixed:    cfg.Fixed,
		engine:   cfg.Engine,
		events:   cfg.Events,
		recorder: cfg.Recorder,
		now:      cfg.Now,
	}
	if p.events == nil {
		p.events = NopSink{}
	}
	if p.recorder == nil {
		p.recorder = NopRecorder{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Mapper exposes the processor's column mapper.
func (p *FileProcessor) Mapper() *ColumnMapper { return p.mapper }

// ProcessFile validates every row of table against schema and emits the
// accepted ones. A header lacking a required column rejects the whole file
// without touching the store.
func (p *FileProcessor) ProcessFile(ctx context.Context, batchID string, file SourceFile, table Table, schema DescriptiveSchema) FileOutcome {
	ctx = context.WithoutCancel(ctx)
	start := p.now()

	out := FileOutcome{
		BatchID:  batchID,
		FileName: file.Name,
		Author:   file.Author,
	}
	base := Event{BatchID: batchID, FileName: file.Name}

	headerLine := table.HeaderLine
	if headerLine <= 0 {
		headerLine = 1
	}

	if err := p.fixed.CheckHeader(p.mapper.MapHeader(table.Header)); err != nil {
		out.Structural = true
		out.TotalRows = countDataRows(table.Rows)
		out.Rejected = structuralErrors(err, headerLine, table.Header)
		for _, e := range out.Rejected {
			p.recorder.RowRejected(e.Kind)
		}
		p.finish(ctx, &out, base, start)
		return out
	}

	descriptive := NewDescriptiveValidator(schema)
	results := make([]RowResult, 0, len(table.Rows))

	for i, cells := range table.Rows {
		if isEmptyRow(cells) {
			out.Skipped++
			continue
		}
		out.TotalRows++

		raw := RawRow{
			Line:    headerLine + i + 1,
			Columns: table.Header,
			Cells:   cells,
		}
		res := p.processRow(ctx, base, file, raw, descriptive)
		if res.Record != nil {
			if res.Merged {
				out.Merged++
			} else {
				out.Created++
			}
		}
		results = append(results, res)
	}

	out.Accepted, out.Rejected = Classify(results)
	p.finish(ctx, &out, base, start)
	return out
}

// processRow maps, validates and emits one row.
func (p *FileProcessor) processRow(ctx context.Context, base Event, file SourceFile, raw RawRow, descriptive *DescriptiveValidator) RowResult {
	mapped := p.mapper.MapRow(raw)
	fixed, errs := p.fixed.Validate(mapped)
	desc, descErrs := descriptive.Validate(mapped)
	errs = append(errs, descErrs...)

	key := BusinessKey{IDType: fixed.IDType, IDValue: fixed.IDValue, Product: fixed.Product}
	ev := base.withKey(key)
	ev.Row = raw.Line

	if len(errs) > 0 {
		for _, e := range errs {
			p.recorder.RowRejected(e.Kind)
		}
		ev.Level = slog.LevelWarn
		ev.Action = ActionValidateRow
		ev.Result = ResultRejected
		ev.Fields = map[string]any{"errors": errorStrings(errs)}
		p.emitEvent(ctx, ev)
		return RowResult{Line: raw.Line, Errors: errs}
	}

	candidate := CanonicalRecord{
		IDType:      fixed.IDType,
		IDValue:     fixed.IDValue,
		Product:     fixed.Product,
		IsActive:    fixed.IsActive,
		ValidFrom:   fixed.ValidFrom.Time,
		ValidTo:     fixed.ValidTo.Time,
		Descriptive: desc,
		Author:      file.Author,
	}

	em, err := p.engine.Emit(ctx, candidate)
	ev.Action = ActionEmitRecord
	if err != nil {
		verr := ValidationError{
			Row:  raw.Line,
			Kind: KindMergeFailure,
			Raw:  raw.Map(),
			Err:  err,
		}
		p.recorder.RowRejected(KindMergeFailure)
		ev.Level = slog.LevelError
		ev.Result = ResultFailed
		ev.Fields = map[string]any{"error": err.Error()}
		p.emitEvent(ctx, ev)
		return RowResult{Line: raw.Line, Errors: []ValidationError{verr}}
	}

	p.recorder.RowAccepted(em.Merged)
	ev.Level = slog.LevelInfo
	ev.Result = ResultCreated
	ev.Fields = map[string]any{"version": em.Record.Version, "record_id": em.Record.ID}
	if em.Merged {
		ev.Result = ResultVersionCreated
		ev.Fields["prior_version"] = em.PriorVersion
	}
	p.emitEvent(ctx, ev)

	return RowResult{Line: raw.Line, Record: &em.Record, Merged: em.Merged}
}

// finish stamps the duration and emits the file-level event.
func (p *FileProcessor) finish(ctx context.Context, out *FileOutcome, base Event, start time.Time) {
	out.Duration = p.now().Sub(start)

	ev := base
	ev.Action = ActionProcessFile
	ev.Fields = map[string]any{
		"author":        out.Author,
		"total_rows":    out.TotalRows,
		"accepted_rows": len(out.Accepted),
		"rejected_rows": out.RejectedRows(),
		"skipped_rows":  out.Skipped,
		"created":       out.Created,
		"merged":        out.Merged,
	}
	if out.Clean() {
		ev.Level = slog.LevelInfo
		ev.Result = ResultImported
	} else {
		ev.Level = slog.LevelWarn
		ev.Result = ResultBroken
		ev.Fields["structural"] = out.Structural
	}
	p.emitEvent(ctx, ev)
}

func (p *FileProcessor) emitEvent(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = p.now()
	}
	p.events.Emit(ctx, ev)
}

// structuralErrors expands a header failure into one error per missing column.
func structuralErrors(err error, headerLine int, header []string) []ValidationError {
	se, ok := err.(*StructuralError)
	if !ok {
		return []ValidationError{{Row: headerLine, Kind: KindMissingFixedColumn, Err: err}}
	}
	errs := make([]ValidationError, len(se.Missing))
	for i, col := range se.Missing {
		errs[i] = ValidationError{
			Row:    headerLine,
			Column: col,
			Kind:   KindMissingFixedColumn,
			Value:  strings.Join(header, ", "),
		}
	}
	return errs
}

// UnreadableOutcome builds the outcome for a file that could not be parsed.
func UnreadableOutcome(batchID string, file SourceFile, err error) FileOutcome {
	return FileOutcome{
		BatchID:    batchID,
		FileName:   file.Name,
		Author:     file.Author,
		Structural: true,
		Rejected: []ValidationError{{
			Kind: KindUnreadableFile,
			Err:  err,
		}},
	}
}

// isEmptyRow returns true if all cells in the row are empty or whitespace.
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func countDataRows(rows [][]string) int {
	n := 0
	for _, r := range rows {
		if !isEmptyRow(r) {
			n++
		}
	}
	return n
}

func errorStrings(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}
