package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"
)

// File names inside the credential directory.
const (
	GitHubTokenFile = "gh_token"
	HostTokenFile   = "app_token"
)

var fileNames = map[Key]string{
	KeyGitHub: GitHubTokenFile,
	KeyHost:   HostTokenFile,
}

// FileStore provides atomic file-based token storage with secure permissions.
// Writes use temp file + rename for crash safety.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// Compile-time check to ensure FileStore implements TokenStore
var _ TokenStore = (*FileStore)(nil)

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithFs sets the filesystem backend. Defaults to the OS filesystem.
func WithFs(fsys afero.Fs) FileStoreOption {
	return func(f *FileStore) {
		f.fs = fsys
	}
}

// NewFileStore creates a FileStore rooted at dir, creating the directory
// with 0700 permissions if it doesn't exist.
func NewFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("token directory cannot be empty")
	}

	f := &FileStore{
		fs:  afero.NewOsFs(),
		dir: dir,
	}
	for _, opt := range opts {
		opt(f)
	}

	if err := f.EnsureDirectory(); err != nil {
		return nil, err
	}

	return f, nil
}

// Dir returns the credential directory.
func (f *FileStore) Dir() string {
	return f.dir
}

// EnsureDirectory creates the credential directory and its parents if missing.
func (f *FileStore) EnsureDirectory() error {
	if err := f.fs.MkdirAll(f.dir, 0700); err != nil {
		return fmt.Errorf("creating token directory %s: %w", f.dir, err)
	}
	return nil
}

// Location returns the path of the file backing key.
func (f *FileStore) Location(key Key) string {
	path, err := f.path(key)
	if err != nil {
		return string(key)
	}
	return path
}

func (f *FileStore) path(key Key) (string, error) {
	name, ok := fileNames[key]
	if !ok {
		return "", fmt.Errorf("unknown token key %q", key)
	}
	return filepath.Join(f.dir, name), nil
}

// Read returns the first line of the stored record. Returns ErrNotFound if the
// file doesn't exist, and an error if it is empty. A record readable by group or
// others is still returned; its mode is tightened to 0600 where supported.
func (f *FileStore) Read(ctx context.Context, key Key) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := f.path(key)
	if err != nil {
		return "", err
	}

	// Check file permissions before reading
	info, err := f.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	// Windows reports 0666 regardless of ACLs
	if perm := info.Mode().Perm(); perm&0077 != 0 && runtime.GOOS != "windows" {
		slog.WarnContext(ctx, "token file has insecure permissions, tightening to 0600", "path", path, "mode", fmt.Sprintf("%04o", perm))
		if err := f.fs.Chmod(path, 0600); err != nil {
			slog.WarnContext(ctx, "failed to tighten token file permissions", "path", path, "error", err)
		}
	}

	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return "", err
	}

	token := firstLine(string(data))
	if token == "" {
		return "", fmt.Errorf("empty token file %s", path)
	}
	return token, nil
}

// Write atomically saves the record using temp file + rename for crash safety.
// Sets file permissions to 0600 (owner read/write only).
func (f *FileStore) Write(ctx context.Context, key Key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := f.path(key)
	if err != nil {
		return err
	}

	// Create secure temp file in same directory for atomic rename
	tempFile, err := afero.TempFile(f.fs, f.dir, "."+fileNames[key]+"-*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths; after a successful rename the
	// temp name no longer exists and Remove is a no-op.
	defer func() { _ = f.fs.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write([]byte(value)); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tempFile.Sync(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	// Set secure file permissions (0600 = rw-------) before the record becomes visible
	if err := f.fs.Chmod(tempName, 0600); err != nil {
		return err
	}

	// Atomic rename to final location
	return f.fs.Rename(tempName, path)
}

// Delete removes the file backing key. A missing file is not an error.
func (f *FileStore) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := f.path(key)
	if err != nil {
		return err
	}

	if err := f.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// firstLine returns the first line of s with trailing whitespace removed.
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimRight(line, " \t\r\n")
}
