package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func testTable() *Table {
	return &Table{
		Header: []string{"coil_no", "hardness_lab"},
		Rows:   [][]string{{"C001", "58"}, {"C002", "60"}},
	}
}

func countingFetch(calls *int, t *Table) FetchFunc {
	return func(ctx context.Context) (*Table, error) {
		*calls++
		return t, nil
	}
}

func TestCacheLoadFetchesOnce(t *testing.T) {
	var calls int
	c := NewCache(t.TempDir(), "test", countingFetch(&calls, testTable()))

	a, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
	if a.ID != b.ID {
		t.Error("repeated Load must return the same snapshot")
	}
	if a.ID == "" || a.FetchedAt.IsZero() || a.Source != "test" {
		t.Errorf("snapshot metadata incomplete: %+v", a)
	}
}

func TestCacheInvalidate(t *testing.T) {
	var calls int
	dir := t.TempDir()
	c := NewCache(dir, "test", countingFetch(&calls, testTable()))

	first, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := c.Invalidate(); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "snapshot.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Error("invalidate must remove the disk manifest")
	}
	second, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load after invalidate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("fetch called %d times, want 2", calls)
	}
	if first.ID == second.ID {
		t.Error("refetched snapshot must get a new ID")
	}
}

func TestCacheRefresh(t *testing.T) {
	var calls int
	c := NewCache(t.TempDir(), "test", countingFetch(&calls, testTable()))

	first, _ := c.Load(context.Background())
	second, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if calls != 2 {
		t.Fatalf("fetch called %d times, want 2", calls)
	}
	if first.ID == second.ID {
		t.Error("Refresh must install a new snapshot")
	}
}

func TestCacheRestoreAcrossProcesses(t *testing.T) {
	var calls int
	dir := t.TempDir()
	tbl := testTable()

	c1 := NewCache(dir, "test", countingFetch(&calls, tbl))
	orig, err := c1.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// A new cache over the same dir simulates a restarted process: it must
	// restore from disk without refetching.
	c2 := NewCache(dir, "test", countingFetch(&calls, tbl))
	restored, err := c2.Load(context.Background())
	if err != nil {
		t.Fatalf("restore Load: %v", err)
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1 (restore must not refetch)", calls)
	}
	if restored.ID != orig.ID {
		t.Errorf("restored ID = %s, want %s", restored.ID, orig.ID)
	}
	if !reflect.DeepEqual(restored.Table, tbl) {
		t.Errorf("restored table = %+v, want %+v", restored.Table, tbl)
	}
}

func TestCacheCorruptManifestRefetches(t *testing.T) {
	var calls int
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "snapshot.yaml"), []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewCache(dir, "test", countingFetch(&calls, testTable()))
	snap, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load over corrupt manifest: %v", err)
	}
	if calls != 1 || snap.ID == "" {
		t.Fatalf("corrupt manifest must fall through to a fresh fetch (calls=%d)", calls)
	}
}

func TestCacheNoDirSkipsPersistence(t *testing.T) {
	var calls int
	c := NewCache("", "local", countingFetch(&calls, testTable()))
	snap, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Table == nil {
		t.Fatal("in-memory snapshot must carry the table")
	}
}

func TestCacheFetchErrorPropagates(t *testing.T) {
	wantErr := errors.New("host unreachable")
	c := NewCache(t.TempDir(), "test", func(ctx context.Context) (*Table, error) {
		return nil, wantErr
	})
	if _, err := c.Load(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("Load error = %v, want wrapped %v", err, wantErr)
	}
}
