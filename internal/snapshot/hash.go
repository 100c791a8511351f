package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Digest is a fixed 256-bit hash, compatible with source.File.Hash.
type Digest [32]byte

// Hex returns the full lowercase hex form.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// Short returns a 12-character prefix for display.
func (d Digest) Short() string {
	return d.Hex()[:12]
}

// IsZero reports whether the digest is all zeroes (never a real hash).
func (d Digest) IsZero() bool {
	var z Digest
	return d == z
}

// Combine builds an aggregate hash: H(content || dep1 || dep2 ...).
// Dependency order must already be deterministic.
func Combine(content Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// snapshotHash derives the whole-pipeline memoization key: the origin name
// hashed together with every module hash, sorted by module name so document
// load order cannot leak into the key.
func snapshotHash(origin string, modules []Module) Digest {
	sorted := make([]Module, len(modules))
	copy(sorted, modules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	deps := make([]Digest, 0, len(sorted))
	for i := range sorted {
		deps = append(deps, sorted[i].Hash)
	}
	return Combine(sha256.Sum256([]byte(origin)), deps...)
}
