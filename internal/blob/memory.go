package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]memoryFile
}

type memoryFile struct {
	content  []byte
	modified time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]memoryFile)}
}

func normalize(p string) string { return path.Clean("/" + p) }

func (s *MemoryStore) ReadFile(_ context.Context, p string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[normalize(p)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, p)
	}
	out := make([]byte, len(f.content))
	copy(out, f.content)
	return out, nil
}

func (s *MemoryStore) WriteFile(_ context.Context, p string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(content))
	copy(cp, content)
	s.files[normalize(p)] = memoryFile{content: cp, modified: time.Now()}
	return nil
}

func (s *MemoryStore) Stat(_ context.Context, p string) (FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	norm := normalize(p)
	if f, ok := s.files[norm]; ok {
		return FileInfo{
			Path:     norm,
			Name:     path.Base(norm),
			Size:     int64(len(f.content)),
			Modified: f.modified,
		}, nil
	}
	// Directories exist implicitly when any file lives under them.
	prefix := strings.TrimSuffix(norm, "/") + "/"
	for fp := range s.files {
		if strings.HasPrefix(fp, prefix) {
			return FileInfo{Path: norm, Name: path.Base(norm), IsDir: true}, nil
		}
	}
	return FileInfo{}, fmt.Errorf("%w: %s", ErrNotExist, p)
}

func (s *MemoryStore) List(_ context.Context, p string) ([]FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := strings.TrimSuffix(normalize(p), "/") + "/"
	seen := make(map[string]FileInfo)
	for fp, f := range s.files {
		if !strings.HasPrefix(fp, prefix) {
			continue
		}
		rest := strings.TrimPrefix(fp, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			dir := prefix + rest[:idx]
			seen[dir] = FileInfo{Path: dir, Name: rest[:idx], IsDir: true}
		} else {
			seen[fp] = FileInfo{
				Path:     fp,
				Name:     rest,
				Size:     int64(len(f.content)),
				Modified: f.modified,
			}
		}
	}
	out := make([]FileInfo, 0, len(seen))
	for _, info := range seen {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *MemoryStore) Checksum(ctx context.Context, p string) (string, error) {
	content, err := s.ReadFile(ctx, p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:]), nil
}
