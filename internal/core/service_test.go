package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type serviceFixture struct {
	svc      *Service
	lib      *fakeLibrary
	store    *memStore
	notifier *captureNotifier
	events   *captureSink
}

func newServiceFixture(t *testing.T, schemas SchemaProvider) serviceFixture {
	t.Helper()
	f := serviceFixture{
		lib:      newFakeLibrary(),
		store:    newMemStore(),
		notifier: &captureNotifier{},
		events:   &captureSink{},
	}
	if schemas == nil {
		schemas = StaticSchema(taxiSchema())
	}
	proc, engine := newTestProcessor(f.store, f.events, nil)
	svc, err := NewService(ServiceConfig{
		Library:            f.lib,
		Reader:             pipeReader,
		Schemas:            schemas,
		Processor:          proc,
		Engine:             engine,
		Notifier:           f.notifier,
		Events:             f.events,
		MaxConcurrentFiles: 3,
		MaxFileSize:        1 << 20,
		DefaultAuthor:      "importer@example.com",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func csvBody(rows ...string) string {
	return strings.Join(append([]string{polishHeader + "|taxi"}, rows...), "\n")
}

// ============================================================================
// RunBatch
// ============================================================================

func TestRunBatch_DispositionAndNotification(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.lib.add("good.csv", "anna", csvBody("VIN|X1||yes|2024-07-01|2025-07-01|no"))
	f.lib.add("partial.csv", "", csvBody(
		"VIN|X2||yes|2024-07-01|2025-07-01|no",
		"VIN|X3||yes||2025-07-01|no",
	))
	f.lib.add("structural.csv", "piotr", "Identyfikator|taxi\nX4|no")

	res, err := f.svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(res.Files) != 3 {
		t.Fatalf("processed %d files, want 3", len(res.Files))
	}

	want := map[string]Disposition{
		"good.csv":       DispositionImported,
		"partial.csv":    DispositionBroken,
		"structural.csv": DispositionBroken,
	}
	for name, d := range want {
		if got := f.lib.moved[name]; got != d {
			t.Errorf("%s moved to %q, want %q", name, got, d)
		}
	}

	if len(f.notifier.reports) != 2 {
		t.Fatalf("notifications = %d, want 2 (broken files only)", len(f.notifier.reports))
	}
	for _, r := range f.notifier.reports {
		if r.FileName == "good.csv" {
			t.Error("clean file must not be reported")
		}
		if r.FileName == "partial.csv" && r.Author != "importer@example.com" {
			t.Errorf("partial.csv author = %q, want default author", r.Author)
		}
		if len(r.Errors) == 0 {
			t.Errorf("%s report has no errors", r.FileName)
		}
	}

	// Partial acceptance: X2 persisted although its file is broken.
	if _, ok, _ := f.store.FindLatest(context.Background(), BusinessKey{"VIN", "X2", DefaultProduct}); !ok {
		t.Error("accepted row from broken file not persisted")
	}

	imported, broken := res.Counts()
	if imported != 1 || broken != 2 {
		t.Errorf("counts = %d/%d", imported, broken)
	}
	if got := f.svc.RecentBatches(); len(got) != 1 || got[0].BatchID != res.BatchID {
		t.Errorf("RecentBatches = %v", got)
	}
}

func TestRunBatch_SchemaFailureAbortsBeforeAnyFile(t *testing.T) {
	f := newServiceFixture(t, failingSchema{err: errors.New("401 unauthorized")})
	f.lib.add("good.csv", "anna", csvBody("VIN|X1||yes|2024-07-01|2025-07-01|no"))

	_, err := f.svc.RunBatch(context.Background())
	if !errors.Is(err, ErrSchemaUnavailable) {
		t.Fatalf("err = %v, want ErrSchemaUnavailable", err)
	}
	if len(f.lib.moved) != 0 {
		t.Errorf("files moved after schema failure: %v", f.lib.moved)
	}
	if f.store.applies != 0 {
		t.Error("store touched after schema failure")
	}
	if evs := f.events.filter(ActionFetchSchema); len(evs) != 1 || evs[0].Result != ResultFailed {
		t.Errorf("fetch_schema events = %+v", evs)
	}
}

type countingSchema struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSchema) FetchSchema(context.Context) (DescriptiveSchema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return taxiSchema(), nil
}

func TestRunBatch_FetchesSchemaOncePerBatch(t *testing.T) {
	schemas := &countingSchema{}
	f := newServiceFixture(t, schemas)
	for i := 0; i < 5; i++ {
		f.lib.add(fmt.Sprintf("f%d.csv", i), "anna", csvBody(fmt.Sprintf("VIN|X%d||yes|2024-07-01|2025-07-01|no", i)))
	}

	if _, err := f.svc.RunBatch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if schemas.calls != 1 {
		t.Errorf("schema fetched %d times, want 1", schemas.calls)
	}
}

func TestRunBatch_ParallelFilesSameKeyLoseNoVersion(t *testing.T) {
	f := newServiceFixture(t, nil)
	const files = 8
	for i := 0; i < files; i++ {
		f.lib.add(fmt.Sprintf("f%d.csv", i), "anna", csvBody(
			"VIN|SHARED||yes|2024-07-01|2025-07-01|no",
			"VIN|SHARED||yes|2024-07-01|2025-07-01|yes",
		))
	}

	if _, err := f.svc.RunBatch(context.Background()); err != nil {
		t.Fatal(err)
	}

	history, _ := f.store.History(context.Background(), BusinessKey{"VIN", "SHARED", DefaultProduct})
	if len(history) != files*2 {
		t.Fatalf("history = %d versions, want %d", len(history), files*2)
	}
	for i := 1; i < len(history); i++ {
		if !history[i].Version.After(history[i-1].Version) {
			t.Fatalf("versions not strictly increasing at %d", i)
		}
	}
}

func TestRunBatch_UnreadableFileGoesToBroken(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.lib.add("empty.csv", "anna", "")
	f.lib.files = append(f.lib.files, SourceFile{ID: "ghost.csv", Name: "ghost.csv"})

	res, err := f.svc.RunBatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, out := range res.Files {
		if out.Clean() || out.Rejected[0].Kind != KindUnreadableFile {
			t.Errorf("%s outcome = %+v", out.FileName, out)
		}
		if f.lib.moved[out.FileName] != DispositionBroken {
			t.Errorf("%s not moved to broken", out.FileName)
		}
	}
}

func TestRunBatch_OversizedFileRejected(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.lib.add("big.csv", "anna", csvBody("VIN|X1||yes|2024-07-01|2025-07-01|no"))
	f.lib.files[0].Size = 2 << 20

	res, err := f.svc.RunBatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(res.Files[0].Rejected[0], ErrFileTooLarge) {
		t.Errorf("rejection = %v, want ErrFileTooLarge", res.Files[0].Rejected[0])
	}
}

func TestRunBatch_EmptyLibrary(t *testing.T) {
	schemas := &countingSchema{}
	f := newServiceFixture(t, schemas)
	res, err := f.svc.RunBatch(context.Background())
	if err != nil || len(res.Files) != 0 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if schemas.calls != 0 {
		t.Error("schema fetched for an empty library")
	}
}

func TestRunBatch_ListFailure(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.lib.listErr = errors.New("permission denied")
	if _, err := f.svc.RunBatch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunBatch_RejectsOverlappingRun(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.lib.add("a.csv", "anna", csvBody("VIN|X1||yes|2024-07-01|2025-07-01|no"))

	f.svc.running.Lock()
	_, err := f.svc.RunBatch(context.Background())
	f.svc.running.Unlock()
	if !errors.Is(err, ErrBatchRunning) {
		t.Fatalf("err = %v, want ErrBatchRunning", err)
	}
	if len(f.lib.moved) != 0 {
		t.Error("overlapping run touched the library")
	}

	if _, err := f.svc.RunBatch(context.Background()); err != nil {
		t.Fatalf("run after release: %v", err)
	}
}

func TestRunBatch_NotifyFailureStillMoves(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.notifier.err = errors.New("smtp: 550 mailbox unavailable")
	f.lib.add("bad.csv", "anna", csvBody("VIN|X1||yes|bad-date|2025-07-01|no"))

	res, err := f.svc.RunBatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Files[0].NotifyErr == nil {
		t.Error("notify error not recorded")
	}
	if f.lib.moved["bad.csv"] != DispositionBroken {
		t.Error("file not moved after notify failure")
	}
}

// ============================================================================
// ImportFile
// ============================================================================

func TestImportFile(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := ContextWithAuthor(context.Background(), "web-user")

	out, err := f.svc.ImportFile(ctx, "upload.csv", "", strings.NewReader(csvBody(
		"VIN|X1||yes|2024-07-01|2025-07-01|no",
		"VIN|X2||yes|2024-07-01|2025-07-01|maybe",
	)))
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if out.Author != "web-user" {
		t.Errorf("Author = %q, want author from context", out.Author)
	}
	if len(out.Accepted) != 1 || len(out.Rejected) != 1 {
		t.Errorf("accepted=%d rejected=%d", len(out.Accepted), len(out.Rejected))
	}
	if len(f.notifier.reports) != 1 {
		t.Errorf("notifications = %d, want 1", len(f.notifier.reports))
	}
	if len(f.lib.moved) != 0 {
		t.Error("direct import must not move library files")
	}
	if f.svc.Limiter().ActiveCount() != 0 {
		t.Error("limiter slot not released")
	}
}

func TestImportFile_Errors(t *testing.T) {
	t.Run("empty body", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		_, err := f.svc.ImportFile(context.Background(), "x.csv", "a", strings.NewReader(""))
		if !errors.Is(err, ErrEmptyFile) {
			t.Errorf("err = %v, want ErrEmptyFile", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		_, err := f.svc.ImportFile(context.Background(), "x.csv", "a", strings.NewReader(strings.Repeat("x", 2<<20)))
		if !errors.Is(err, ErrFileTooLarge) {
			t.Errorf("err = %v, want ErrFileTooLarge", err)
		}
	})

	t.Run("schema unavailable", func(t *testing.T) {
		f := newServiceFixture(t, failingSchema{err: errors.New("timeout")})
		_, err := f.svc.ImportFile(context.Background(), "x.csv", "a", strings.NewReader(csvBody()))
		if !errors.Is(err, ErrSchemaUnavailable) {
			t.Errorf("err = %v, want ErrSchemaUnavailable", err)
		}
	})

	t.Run("limiter busy", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.svc.cfg.Limiter = NewImportLimiter(1, 10*time.Millisecond)
		f.svc.Limiter().TryAcquire()
		defer f.svc.Limiter().Release()
		_, err := f.svc.ImportFile(context.Background(), "x.csv", "a", strings.NewReader(csvBody()))
		if !errors.Is(err, ErrTooManyImports) {
			t.Errorf("err = %v, want ErrTooManyImports", err)
		}
	})
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	if _, err := NewService(ServiceConfig{}); err == nil {
		t.Error("expected error for empty config")
	}
}

// ============================================================================
// Poller
// ============================================================================

type countingRunner struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRunner) RunBatch(context.Context) (BatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return BatchResult{}, nil
}

func TestStartPoller_RunsImmediatelyThenOnTicks(t *testing.T) {
	runner := &countingRunner{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		StartPoller(ctx, runner, 20*time.Millisecond)
		close(done)
	}()

	time.Sleep(70 * time.Millisecond)
	cancel()
	<-done

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.calls < 2 {
		t.Errorf("RunBatch called %d times, want at least 2", runner.calls)
	}
}
