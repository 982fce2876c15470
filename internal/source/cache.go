package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/coilforge/coilqa-cli/internal/utils"
)

const (
	manifestFileName = "snapshot.yaml"
	tableFileName    = "table.csv"
)

// FetchFunc produces a fresh table, blocking on I/O as needed.
type FetchFunc func(ctx context.Context) (*Table, error)

// Snapshot is one immutable fetched copy of the source table. Callers never
// mutate it; every derived view filters its own copy.
type Snapshot struct {
	ID        string    `yaml:"id"`
	Source    string    `yaml:"source"`
	FetchedAt time.Time `yaml:"fetched_at"`

	Table *Table `yaml:"-"`
}

// Cache holds exactly one current snapshot, in memory and mirrored on disk
// so a restarted process reuses the last fetch. Invalidation is explicit:
// the next Load after Invalidate performs a blocking synchronous fetch.
type Cache struct {
	dir    string
	source string
	fetch  FetchFunc

	mu  sync.Mutex
	cur *Snapshot
}

// NewCache builds a cache rooted at dir. source labels where the data comes
// from (URL or file path) for the manifest and warning output.
func NewCache(dir, source string, fetch FetchFunc) *Cache {
	return &Cache{dir: dir, source: source, fetch: fetch}
}

// Load returns the current snapshot, restoring it from disk or fetching it
// when none exists.
func (c *Cache) Load(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != nil {
		return c.cur, nil
	}
	if snap, err := c.restore(); err == nil {
		c.cur = snap
		return snap, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "⚠ Warning: discarding unreadable cached snapshot: %v\n", err)
	}
	return c.refresh(ctx)
}

// Refresh discards the current snapshot and fetches a new one.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drop()
	return c.refresh(ctx)
}

// Invalidate clears the cached snapshot in memory and on disk. The next
// Load refetches.
func (c *Cache) Invalidate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drop()
}

func (c *Cache) drop() error {
	c.cur = nil
	var firstErr error
	for _, name := range []string{manifestFileName, tableFileName} {
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// refresh fetches, persists, and installs a new snapshot. Caller holds mu.
func (c *Cache) refresh(ctx context.Context) (*Snapshot, error) {
	t, err := c.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch table: %w", err)
	}
	snap := &Snapshot{
		ID:        uuid.NewString(),
		Source:    c.source,
		FetchedAt: time.Now().UTC(),
		Table:     t,
	}
	if err := c.persist(snap); err != nil {
		// A failed disk mirror is not fatal: the in-memory snapshot is
		// still usable for this process.
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to persist snapshot: %v\n", err)
	}
	c.cur = snap
	return snap, nil
}

func (c *Cache) persist(snap *Snapshot) error {
	if c.dir == "" {
		return nil
	}
	if err := utils.EnsureDir(c.dir); err != nil {
		return fmt.Errorf("ensure cache dir: %w", err)
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(snap.Table.Header); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := w.WriteAll(snap.Table.Rows); err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	if err := utils.SafeWriteFile(filepath.Join(c.dir, tableFileName), buf.Bytes()); err != nil {
		return err
	}
	mb, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return utils.SafeWriteFile(filepath.Join(c.dir, manifestFileName), mb)
}

func (c *Cache) restore() (*Snapshot, error) {
	if c.dir == "" {
		return nil, fs.ErrNotExist
	}
	mb, err := os.ReadFile(filepath.Join(c.dir, manifestFileName))
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := yaml.Unmarshal(mb, &snap); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	tb, err := os.ReadFile(filepath.Join(c.dir, tableFileName))
	if err != nil {
		return nil, err
	}
	t, err := (csvReader{}).Read(tb, ReadOptions{Delimiter: ','})
	if err != nil {
		return nil, fmt.Errorf("parse cached table: %w", err)
	}
	snap.Table = t
	return &snap, nil
}
