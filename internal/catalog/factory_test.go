package catalog_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"framefeed/internal/catalog"
	"framefeed/internal/testsupport"
)

func TestFactoryWritersAreIsolated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	factory := catalog.NewFactory(cfg)
	ctx := context.Background()

	const concurrent = 6
	writers := make([]*catalog.Writer, concurrent)
	for i := range writers {
		w, err := factory.OpenWriter(ctx)
		if err != nil {
			t.Fatalf("OpenWriter %d: %v", i, err)
		}
		writers[i] = w
	}
	for i := 0; i < concurrent; i++ {
		for j := i + 1; j < concurrent; j++ {
			if writers[i] == writers[j] {
				t.Fatalf("writers %d and %d share an instance", i, j)
			}
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, concurrent)
	for i, w := range writers {
		wg.Add(1)
		go func(i int, w *catalog.Writer) {
			defer wg.Done()
			errs[i] = w.InsertMedia(ctx, &catalog.MediaFile{
				Source:      "testsource",
				PlaylistID:  1,
				MediaItemID: fmt.Sprintf("m-%d", i),
				OriginalURL: fmt.Sprintf("https://photos.example.com/m-%d.jpg", i),
				Basename:    fmt.Sprintf("m-%d", i),
				LocalPath:   fmt.Sprintf("/tmp/m-%d.jpg", i),
			})
		}(i, w)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent insert %d: %v", i, err)
		}
	}
	for i, w := range writers {
		if err := w.Close(); err != nil {
			t.Fatalf("close writer %d: %v", i, err)
		}
	}

	known, err := store.KnownMediaIDs(ctx, "testsource", 1)
	if err != nil {
		t.Fatalf("KnownMediaIDs: %v", err)
	}
	if len(known) != concurrent {
		t.Fatalf("expected %d rows from concurrent writers, got %d", concurrent, len(known))
	}
}

func TestWriterCloseIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.MustOpenCatalog(t, cfg)

	writer, err := catalog.NewFactory(cfg).OpenWriter(context.Background())
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	var nilWriter *catalog.Writer
	if err := nilWriter.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestFactoryWriterRequiresSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// No store opened, so the schema does not exist yet; an insert through
	// an isolated writer must fail rather than invent tables.
	writer, err := catalog.NewFactory(cfg).OpenWriter(context.Background())
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	defer writer.Close()

	err = writer.InsertMedia(context.Background(), &catalog.MediaFile{
		Source: "testsource", PlaylistID: 1, MediaItemID: "m-0",
		OriginalURL: "https://photos.example.com/m-0.jpg",
		Basename:    "m-0", LocalPath: "/tmp/m-0.jpg",
	})
	if err == nil {
		t.Fatal("insert without schema should fail")
	}
}
