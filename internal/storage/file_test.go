package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	logx "ticksched/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", "  None "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) returned a store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileAppendAndRecent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := RunRecord{
			At:    base.Add(time.Duration(i) * time.Second),
			Label: fmt.Sprintf("task-%d", i),
			Event: "fired",
			Mode:  "sync",
		}
		if err := st.AppendRun(ctx, rec); err != nil {
			t.Fatalf("AppendRun %d: %v", i, err)
		}
	}

	got, err := st.RecentRuns(ctx, 3)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	// Oldest-first window over the tail.
	for i, r := range got {
		want := fmt.Sprintf("task-%d", i+2)
		if r.Label != want {
			t.Fatalf("record %d label = %q, want %q", i, r.Label, want)
		}
	}
	if !got[0].At.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("record 0 at = %v", got[0].At)
	}
}

func TestFileRecentOnEmptyStore(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	got, err := st.RecentRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d records on empty store", len(got))
	}
}

func TestFileAppendAfterCloseFails(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.AppendRun(context.Background(), RunRecord{Event: "fired"}); err == nil {
		t.Fatal("AppendRun succeeded on a closed store")
	}
}
