// Package cache memoizes synthesis results on disk, keyed by snapshot
// content hash. A hit replays the previously rendered artifacts without
// re-running analysis; any input change shifts the key and misses.
package cache

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"wireplan/internal/diag"
	"wireplan/internal/snapshot"
)

// Bump when the Payload layout changes.
const schemaVersion uint16 = 2

// Payload is one cached synthesis result.
type Payload struct {
	Schema      uint16
	Origin      string
	ToolVersion string

	// Rendered artifacts, parallel slices in render order.
	ArtifactNames []string
	ArtifactData  [][]byte

	// Diagnostics holds the sorted bag of the original run, replayed on a
	// hit so identical inputs print identical output. A run that produced
	// errors caches nothing, so these are warnings and infos only.
	Diagnostics []diag.Diagnostic
}

// Disk is a thread-safe on-disk cache rooted at the standard user cache
// location.
type Disk struct {
	mu  sync.RWMutex
	dir string
}

// Open initializes the cache directory for the given application name,
// honoring XDG_CACHE_HOME.
func Open(app string) (*Disk, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Disk{dir: dir}, nil
}

// OpenAt roots the cache at an explicit directory. Used by tests and the
// --cache-dir override.
func OpenAt(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Disk{dir: dir}, nil
}

func (c *Disk) pathFor(key snapshot.Digest) string {
	return filepath.Join(c.dir, "plans", hex.EncodeToString(key[:])+".mp")
}

// Put serializes a payload under its snapshot key. The write is atomic:
// a temp file in the same directory renamed over the target.
func (c *Disk) Put(key snapshot.Digest, payload *Payload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	payload.Schema = schemaVersion
	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads the payload for a key. A missing entry or a schema mismatch is
// a miss, not an error.
func (c *Disk) Get(key snapshot.Digest, out *Payload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	if out.Schema != schemaVersion {
		return false, nil
	}
	return true, nil
}

// DropAll discards every cached plan, for `wireplan cache clean` and after
// schema bumps.
func (c *Disk) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}
