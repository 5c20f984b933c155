package importer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"framefeed/internal/catalog"
	"framefeed/internal/config"
	"framefeed/internal/logging"
)

type stubWriter struct {
	factory *stubFactory
	inserts int
	closed  bool
}

func (w *stubWriter) InsertMedia(ctx context.Context, rec *catalog.MediaFile) error {
	w.inserts++
	return w.factory.insert(ctx, w, rec)
}

func (w *stubWriter) Close() error {
	w.closed = true
	w.factory.noteClosed()
	return nil
}

type stubFactory struct {
	mu        sync.Mutex
	writers   []*stubWriter
	closed    int
	openErr   error
	insert    func(ctx context.Context, w *stubWriter, rec *catalog.MediaFile) error
	current   atomic.Int64
	highWater atomic.Int64
}

func newStubFactory(insert func(ctx context.Context, w *stubWriter, rec *catalog.MediaFile) error) *stubFactory {
	f := &stubFactory{}
	if insert == nil {
		insert = func(context.Context, *stubWriter, *catalog.MediaFile) error { return nil }
	}
	f.insert = func(ctx context.Context, w *stubWriter, rec *catalog.MediaFile) error {
		now := f.current.Add(1)
		for {
			high := f.highWater.Load()
			if now <= high || f.highWater.CompareAndSwap(high, now) {
				break
			}
		}
		defer f.current.Add(-1)
		return insert(ctx, w, rec)
	}
	return f
}

func (f *stubFactory) OpenWriter(ctx context.Context) (MediaWriter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	w := &stubWriter{factory: f}
	f.writers = append(f.writers, w)
	return w, nil
}

func (f *stubFactory) noteClosed() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
}

func (f *stubFactory) writerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writers)
}

func (f *stubFactory) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func gateTuning() config.Import {
	tuning := config.Default().Import
	tuning.DBStaggerMillis = 0
	return tuning
}

func TestDBGateCapNeverExceeded(t *testing.T) {
	factory := newStubFactory(func(context.Context, *stubWriter, *catalog.MediaFile) error {
		time.Sleep(3 * time.Millisecond)
		return nil
	})
	tuning := gateTuning()
	tuning.MaxConcurrentDBOperations = 3

	gate, err := NewDBGate(factory, tuning, logging.NewNop())
	if err != nil {
		t.Fatalf("NewDBGate: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := &catalog.MediaFile{MediaItemID: "m"}
			if err := gate.InsertMedia(context.Background(), rec); err != nil {
				t.Errorf("InsertMedia: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if high := factory.highWater.Load(); high > 3 {
		t.Fatalf("db concurrency cap exceeded: high water %d with capacity 3", high)
	}
}

func TestDBGateWritersNeverShared(t *testing.T) {
	factory := newStubFactory(func(context.Context, *stubWriter, *catalog.MediaFile) error {
		time.Sleep(2 * time.Millisecond)
		return nil
	})
	gate, err := NewDBGate(factory, gateTuning(), logging.NewNop())
	if err != nil {
		t.Fatalf("NewDBGate: %v", err)
	}

	const ops = 12
	var wg sync.WaitGroup
	for i := 0; i < ops; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = gate.InsertMedia(context.Background(), &catalog.MediaFile{MediaItemID: "m"})
		}()
	}
	wg.Wait()

	if got := factory.writerCount(); got != ops {
		t.Fatalf("expected %d isolated writers, got %d", ops, got)
	}
	if got := factory.closedCount(); got != ops {
		t.Fatalf("expected every writer closed, got %d of %d", got, ops)
	}
	for i, w := range factory.writers {
		if w.inserts != 1 {
			t.Fatalf("writer %d served %d inserts, want 1", i, w.inserts)
		}
	}
}

func TestDBGateRetriesBusyThenFails(t *testing.T) {
	busy := errors.New("database is locked")
	factory := newStubFactory(func(context.Context, *stubWriter, *catalog.MediaFile) error {
		return busy
	})
	tuning := gateTuning()
	tuning.DBRetryAttempts = 3

	gate, err := NewDBGate(factory, tuning, logging.NewNop())
	if err != nil {
		t.Fatalf("NewDBGate: %v", err)
	}

	err = gate.InsertMedia(context.Background(), &catalog.MediaFile{MediaItemID: "m-busy"})
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist after exhausted retries, got %v", err)
	}
	if got := factory.writers[0].inserts; got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}
	if factory.closedCount() != 1 {
		t.Fatal("writer not closed after retry exhaustion")
	}
}

func TestDBGateDoesNotRetryNonBusyErrors(t *testing.T) {
	factory := newStubFactory(func(context.Context, *stubWriter, *catalog.MediaFile) error {
		return errors.New("constraint violation")
	})
	gate, err := NewDBGate(factory, gateTuning(), logging.NewNop())
	if err != nil {
		t.Fatalf("NewDBGate: %v", err)
	}

	err = gate.InsertMedia(context.Background(), &catalog.MediaFile{MediaItemID: "m"})
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if got := factory.writers[0].inserts; got != 1 {
		t.Fatalf("non-busy error retried %d times", got)
	}
}

func TestDBGateOpenFailureIsStoreUnavailable(t *testing.T) {
	factory := newStubFactory(nil)
	factory.openErr = errors.New("unable to open database file")

	gate, err := NewDBGate(factory, gateTuning(), logging.NewNop())
	if err != nil {
		t.Fatalf("NewDBGate: %v", err)
	}

	err = gate.InsertMedia(context.Background(), &catalog.MediaFile{MediaItemID: "m"})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if !IsFatal(err) {
		t.Fatal("store-unavailable errors must be fatal")
	}
}

func TestDBGateStaggerHonorsCancellation(t *testing.T) {
	factory := newStubFactory(nil)
	tuning := gateTuning()
	tuning.DBStaggerMillis = 5000

	gate, err := NewDBGate(factory, tuning, logging.NewNop())
	if err != nil {
		t.Fatalf("NewDBGate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = gate.InsertMedia(ctx, &catalog.MediaFile{MediaItemID: "m"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("stagger sleep ignored cancellation")
	}
}
