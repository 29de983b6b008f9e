package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxFileSize bounds how much of a source file is read into memory.
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

// recentBatchLimit is how many batch results are kept for the API.
const recentBatchLimit = 20

// Library lists source files and relocates them after processing.
type Library interface {
	List(ctx context.Context) ([]SourceFile, error)
	Open(ctx context.Context, f SourceFile) (io.ReadCloser, error)
	Move(ctx context.Context, f SourceFile, d Disposition) error
}

// TableReader parses a file's bytes into a Table. name selects the format.
type TableReader func(name string, data []byte) (Table, error)

// Notifier delivers the consolidated report for a broken file to its author.
type Notifier interface {
	NotifyRejected(ctx context.Context, r Report) error
}

// ServiceConfig wires a Service. Library and Notifier may be nil for
// deployments that only accept uploads over HTTP.
type ServiceConfig struct {
	Library            Library
	Reader             TableReader
	Schemas            SchemaProvider
	Processor          *FileProcessor
	Engine             *Engine
	Notifier           Notifier
	Events             EventSink
	Recorder           Recorder
	Limiter            *ImportLimiter
	MaxConcurrentFiles int
	MaxFileSize        int64
	DefaultAuthor      string
}

// Service runs import batches over the document library and single-file
// imports submitted directly.
type Service struct {
	cfg ServiceConfig

	running sync.Mutex // held for the duration of a library batch

	mu      sync.RWMutex
	batches []BatchResult // newest first
}

// NewService validates cfg and fills defaults.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Reader == nil {
		return nil, errors.New("service: table reader is required")
	}
	if cfg.Schemas == nil {
		return nil, errors.New("service: schema provider is required")
	}
	if cfg.Processor == nil || cfg.Engine == nil {
		return nil, errors.New("service: processor and engine are required")
	}
	if cfg.Events == nil {
		cfg.Events = NopSink{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = NopRecorder{}
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewImportLimiter(cfg.MaxConcurrentFiles, 0)
	}
	if cfg.MaxConcurrentFiles <= 0 {
		cfg.MaxConcurrentFiles = DefaultMaxConcurrentImports
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	return &Service{cfg: cfg}, nil
}

// Limiter returns the limiter guarding direct imports.
func (s *Service) Limiter() *ImportLimiter { return s.cfg.Limiter }

// RunBatch processes every file currently in the library against one
// schema snapshot. A schema fetch failure aborts the batch before any file
// is touched and returns an error wrapping ErrSchemaUnavailable. Files are
// processed in parallel, rows within a file sequentially. Only one batch
// runs at a time; an overlapping call returns ErrBatchRunning.
func (s *Service) RunBatch(ctx context.Context) (BatchResult, error) {
	if s.cfg.Library == nil {
		return BatchResult{}, errors.New("run batch: no document library configured")
	}
	if !s.running.TryLock() {
		return BatchResult{}, ErrBatchRunning
	}
	defer s.running.Unlock()

	result := BatchResult{BatchID: uuid.NewString(), Started: time.Now()}
	log := slog.With("batch_id", result.BatchID)

	err := s.runBatch(ContextWithBatchID(ctx, result.BatchID), &result, log)
	result.Duration = time.Since(result.Started)
	s.cfg.Recorder.BatchCompleted(result.Duration, err)
	if err != nil {
		log.Error("batch aborted", "error", err)
		return result, err
	}

	imported, broken := result.Counts()
	log.Info("batch completed",
		"files", len(result.Files),
		"imported", imported,
		"broken", broken,
		"duration_ms", result.Duration.Milliseconds(),
	)
	s.remember(result)
	return result, nil
}

func (s *Service) runBatch(ctx context.Context, result *BatchResult, log *slog.Logger) error {
	files, err := s.cfg.Library.List(ctx)
	if err != nil {
		return fmt.Errorf("list library: %w", err)
	}
	if len(files) == 0 {
		log.Debug("no files to import")
		return nil
	}

	schema, err := s.fetchSchema(ctx, result.BatchID)
	if err != nil {
		return err
	}

	outcomes := make([]FileOutcome, len(files))
	done := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrentFiles)
	for i, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			outcomes[i] = s.importLibraryFile(gctx, result.BatchID, f, schema)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	for i := range outcomes {
		if done[i] {
			result.Files = append(result.Files, outcomes[i])
		}
	}
	if len(result.Files) < len(files) {
		log.Warn("batch interrupted, remaining files left in inbox",
			"processed", len(result.Files),
			"total", len(files),
		)
	}
	return ctx.Err()
}

// importLibraryFile reads, processes, reports and relocates one file.
// Disposition always happens last, after every row was classified. Once
// started, a file runs to completion even if the batch is cancelled, or it
// would be half imported and reprocessed on the next run.
func (s *Service) importLibraryFile(ctx context.Context, batchID string, f SourceFile, schema DescriptiveSchema) FileOutcome {
	ctx = context.WithoutCancel(ctx)
	if f.Author == "" {
		f.Author = s.cfg.DefaultAuthor
	}

	var out FileOutcome
	table, err := s.readLibraryFile(ctx, f)
	if err != nil {
		out = UnreadableOutcome(batchID, f, err)
		s.cfg.Recorder.RowRejected(KindUnreadableFile)
		s.cfg.Events.Emit(ctx, Event{
			Time:     time.Now(),
			Level:    slog.LevelError,
			Action:   ActionProcessFile,
			Result:   ResultBroken,
			BatchID:  batchID,
			FileName: f.Name,
			Fields:   map[string]any{"error": err.Error()},
		})
	} else {
		out = s.cfg.Processor.ProcessFile(ctx, batchID, f, table, schema)
	}

	if !out.Clean() {
		out.NotifyErr = s.notify(ctx, out)
	}
	out.MoveErr = s.move(ctx, f, out)
	s.cfg.Recorder.FileProcessed(out.Disposition())
	return out
}

func (s *Service) readLibraryFile(ctx context.Context, f SourceFile) (Table, error) {
	if f.Size > s.cfg.MaxFileSize {
		return Table{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, f.Size, s.cfg.MaxFileSize)
	}
	rc, err := s.cfg.Library.Open(ctx, f)
	if err != nil {
		return Table{}, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := readLimited(rc, s.cfg.MaxFileSize)
	if err != nil {
		return Table{}, err
	}
	return s.cfg.Reader(f.Name, data)
}

// ImportFile processes a single uploaded file outside the library
// workflow. The caller keeps the file; no disposition is performed. Read
// and schema failures are returned as errors; row problems are reported
// in the outcome and sent to the author.
func (s *Service) ImportFile(ctx context.Context, name, author string, r io.Reader) (FileOutcome, error) {
	var out FileOutcome
	err := s.cfg.Limiter.Do(ctx, func() error {
		if author == "" {
			author = AuthorFromContext(ctx)
		}
		if author == "" {
			author = s.cfg.DefaultAuthor
		}
		data, err := readLimited(r, s.cfg.MaxFileSize)
		if err != nil {
			return err
		}
		table, err := s.cfg.Reader(name, data)
		if err != nil {
			return err
		}

		batch := BatchResult{BatchID: uuid.NewString(), Started: time.Now()}
		ctx := ContextWithBatchID(ctx, batch.BatchID)
		schema, err := s.fetchSchema(ctx, batch.BatchID)
		if err != nil {
			return err
		}

		file := SourceFile{ID: name, Name: name, Author: author, Size: int64(len(data)), ModTime: batch.Started}
		out = s.cfg.Processor.ProcessFile(ctx, batch.BatchID, file, table, schema)
		if !out.Clean() {
			out.NotifyErr = s.notify(context.WithoutCancel(ctx), out)
		}
		s.cfg.Recorder.FileProcessed(out.Disposition())

		batch.Duration = time.Since(batch.Started)
		batch.Files = []FileOutcome{out}
		s.remember(batch)
		return nil
	})
	return out, err
}

// fetchSchema takes the batch's schema snapshot.
func (s *Service) fetchSchema(ctx context.Context, batchID string) (DescriptiveSchema, error) {
	schema, err := s.cfg.Schemas.FetchSchema(ctx)
	s.cfg.Recorder.SchemaFetched(err)

	ev := Event{Time: time.Now(), Action: ActionFetchSchema, BatchID: batchID}
	if err != nil {
		ev.Level = slog.LevelError
		ev.Result = ResultFailed
		ev.Fields = map[string]any{"error": err.Error()}
		s.cfg.Events.Emit(ctx, ev)
		if errors.Is(err, ErrSchemaUnavailable) {
			return DescriptiveSchema{}, err
		}
		return DescriptiveSchema{}, fmt.Errorf("%w: %w", ErrSchemaUnavailable, err)
	}
	ev.Level = slog.LevelDebug
	ev.Result = ResultOK
	ev.Fields = map[string]any{"keys": schema.Len()}
	s.cfg.Events.Emit(ctx, ev)
	return schema, nil
}

func (s *Service) notify(ctx context.Context, out FileOutcome) error {
	if s.cfg.Notifier == nil {
		return nil
	}
	err := s.cfg.Notifier.NotifyRejected(ctx, out.Report())

	ev := Event{
		Time:     time.Now(),
		Action:   ActionNotify,
		BatchID:  out.BatchID,
		FileName: out.FileName,
		Fields:   map[string]any{"author": out.Author, "errors": len(out.Rejected)},
	}
	if err != nil {
		ev.Level = slog.LevelError
		ev.Result = ResultFailed
		ev.Fields["error"] = err.Error()
	} else {
		ev.Level = slog.LevelInfo
		ev.Result = ResultSent
	}
	s.cfg.Events.Emit(ctx, ev)
	return err
}

func (s *Service) move(ctx context.Context, f SourceFile, out FileOutcome) error {
	d := out.Disposition()
	err := s.cfg.Library.Move(ctx, f, d)

	ev := Event{
		Time:     time.Now(),
		Action:   ActionMoveFile,
		BatchID:  out.BatchID,
		FileName: f.Name,
	}
	switch {
	case err != nil:
		ev.Level = slog.LevelError
		ev.Result = ResultFailed
		ev.Fields = map[string]any{"disposition": string(d), "error": err.Error()}
	case d == DispositionImported:
		ev.Level = slog.LevelInfo
		ev.Result = ResultMovedImported
	default:
		ev.Level = slog.LevelInfo
		ev.Result = ResultMovedBroken
	}
	s.cfg.Events.Emit(ctx, ev)
	return err
}

// History returns every version of key, oldest first.
func (s *Service) History(ctx context.Context, key BusinessKey) ([]CanonicalRecord, error) {
	return s.cfg.Engine.History(ctx, key)
}

// Latest returns the current version of key.
func (s *Service) Latest(ctx context.Context, key BusinessKey) (CanonicalRecord, bool, error) {
	return s.cfg.Engine.Latest(ctx, key)
}

// Schema fetches the descriptive schema as the next batch would see it.
func (s *Service) Schema(ctx context.Context) (DescriptiveSchema, error) {
	return s.cfg.Schemas.FetchSchema(ctx)
}

// RecentBatches returns the most recent batch results, newest first.
func (s *Service) RecentBatches() []BatchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]BatchResult, len(s.batches))
	copy(out, s.batches)
	return out
}

func (s *Service) remember(b BatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append([]BatchResult{b}, s.batches...)
	if len(s.batches) > recentBatchLimit {
		s.batches = s.batches[:recentBatchLimit]
	}
}

// readLimited reads r fully, failing if it holds more than limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, limit)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	return data, nil
}
