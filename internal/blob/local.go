package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore is a Store rooted at a directory on a mounted share.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at root, creating it if missing.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: root required", ErrInvalidPath)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// resolve maps a store path to a filesystem path, rejecting traversal out
// of the root.
func (s *LocalStore) resolve(p string) (string, error) {
	cleaned := filepath.Clean("/" + p)
	full := filepath.Join(s.root, cleaned)
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}
	return full, nil
}

func (s *LocalStore) ReadFile(_ context.Context, p string) ([]byte, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, p)
		}
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	return content, nil
}

func (s *LocalStore) WriteFile(_ context.Context, p string, content []byte) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating directories for %s: %w", p, err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", p, err)
	}
	return nil
}

func (s *LocalStore) Stat(_ context.Context, p string) (FileInfo, error) {
	full, err := s.resolve(p)
	if err != nil {
		return FileInfo{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, fmt.Errorf("%w: %s", ErrNotExist, p)
		}
		return FileInfo{}, fmt.Errorf("stat %s: %w", p, err)
	}
	return FileInfo{
		Path:     p,
		Name:     info.Name(),
		Size:     info.Size(),
		Modified: info.ModTime(),
		IsDir:    info.IsDir(),
	}, nil
}

func (s *LocalStore) List(_ context.Context, p string) ([]FileInfo, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, p)
		}
		return nil, fmt.Errorf("listing %s: %w", p, err)
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{
			Path:     filepath.ToSlash(filepath.Join(p, e.Name())),
			Name:     e.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
			IsDir:    e.IsDir(),
		})
	}
	return out, nil
}

func (s *LocalStore) Checksum(ctx context.Context, p string) (string, error) {
	content, err := s.ReadFile(ctx, p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:]), nil
}
