package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"modsh/cmd/modsh/dsl"
)

// Loader reads DSL source files, caching raw text by canonicalized path so
// each file is read once per compile regardless of how many uses references
// point at it.
type Loader struct {
	cache map[string][]byte
	stats LoaderStats
}

// LoaderStats counts cache behavior; Reads is the number of actual file reads.
type LoaderStats struct {
	Reads int
	Hits  int
}

// NewLoader returns a Loader with an empty cache.
func NewLoader() *Loader {
	return &Loader{cache: make(map[string][]byte)}
}

// Stats returns the cache counters accumulated so far.
func (l *Loader) Stats() LoaderStats {
	return l.stats
}

// Load reads the file at path and returns its text and canonical path.
func (l *Loader) Load(path string) ([]byte, string, error) {
	canonical, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, "", fmt.Errorf("%w: canonicalizing %s: %v", dsl.ErrIO, path, err)
	}
	if text, ok := l.cache[canonical]; ok {
		l.stats.Hits++
		return text, canonical, nil
	}
	l.stats.Reads++

	text, err := os.ReadFile(canonical)
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading %s: %v", dsl.ErrIO, path, err)
	}
	l.cache[canonical] = text
	return text, canonical, nil
}
