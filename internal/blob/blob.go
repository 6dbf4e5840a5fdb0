// Package blob provides the narrow file I/O capability the core consumes.
//
// The transport behind the share (WebDAV, SMB, rclone mount) is not this
// package's concern: implementations only see POSIX-style paths under a
// single root. Content is addressed by hierarchical path, namespaced per
// user as /users/<userID>/<category>/<year>/<month>/<filename>.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"
)

// Sentinel errors for blob operations.
var (
	// ErrNotExist is returned when a path has no content.
	ErrNotExist = errors.New("blob does not exist")

	// ErrInvalidPath indicates a path outside the store root.
	ErrInvalidPath = errors.New("invalid blob path")
)

// FileInfo describes one stored blob or directory.
type FileInfo struct {
	Path     string
	Name     string
	Size     int64
	Modified time.Time
	IsDir    bool
}

// Store is the blob capability.
type Store interface {
	// ReadFile returns the full content at path.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile stores content at path, creating intermediate directories.
	WriteFile(ctx context.Context, path string, content []byte) error

	// Stat returns size and modification time for path.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// List returns the entries directly under path.
	List(ctx context.Context, path string) ([]FileInfo, error)

	// Checksum returns the hex sha256 of the content at path.
	Checksum(ctx context.Context, path string) (string, error)
}

// UserPath builds the canonical per-user blob path for a file created at ts:
// /users/<userID>/<category>/<year>/<month>/<filename>.
func UserPath(userID, category, filename string, ts time.Time) string {
	return path.Join("/users", userID,
		category,
		fmt.Sprintf("%04d", ts.Year()),
		fmt.Sprintf("%02d", int(ts.Month())),
		filename,
	)
}

// UserRoot returns the root directory of a user's namespace.
func UserRoot(userID string) string {
	return path.Join("/users", userID)
}
