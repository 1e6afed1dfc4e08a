package tokenstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

// truncatingFs simulates a crash mid-write: every newly created file accepts
// only half of the first write and then fails.
type truncatingFs struct {
	afero.Fs
}

func (t truncatingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := t.Fs.OpenFile(name, flag, perm)
	if err != nil || flag&os.O_CREATE == 0 {
		return f, err
	}
	return &truncatingFile{File: f}, nil
}

type truncatingFile struct {
	afero.File
}

func (t *truncatingFile) Write(p []byte) (int, error) {
	n, _ := t.File.Write(p[:len(p)/2])
	return n, errors.New("no space left on device")
}

func newMemStore(t *testing.T) (*FileStore, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	store, err := NewFileStore("/home/user/.pipeline", WithFs(fsys))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store, fsys
}

func TestNewFileStore(t *testing.T) {
	t.Run("empty dir rejected", func(t *testing.T) {
		if _, err := NewFileStore(""); err == nil {
			t.Fatal("expected error for empty directory")
		}
	})

	t.Run("creates nested directory", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		if _, err := NewFileStore("/a/b/c", WithFs(fsys)); err != nil {
			t.Fatalf("NewFileStore: %v", err)
		}
		ok, err := afero.DirExists(fsys, "/a/b/c")
		if err != nil || !ok {
			t.Fatalf("directory not created: exists=%v err=%v", ok, err)
		}
	})

	t.Run("existing directory is fine", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		if err := fsys.MkdirAll("/tokens", 0700); err != nil {
			t.Fatal(err)
		}
		store, err := NewFileStore("/tokens", WithFs(fsys))
		if err != nil {
			t.Fatalf("NewFileStore: %v", err)
		}
		if err := store.EnsureDirectory(); err != nil {
			t.Fatalf("EnsureDirectory on existing dir: %v", err)
		}
	})
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemStore(t)

	for _, key := range Keys {
		if err := store.Write(ctx, key, "value-"+string(key)); err != nil {
			t.Fatalf("Write(%s): %v", key, err)
		}
	}
	for _, key := range Keys {
		got, err := store.Read(ctx, key)
		if err != nil {
			t.Fatalf("Read(%s): %v", key, err)
		}
		if got != "value-"+string(key) {
			t.Errorf("Read(%s) = %q, want %q", key, got, "value-"+string(key))
		}
	}
}

func TestFileStoreReadFirstLineOnly(t *testing.T) {
	ctx := context.Background()
	store, fsys := newMemStore(t)

	if err := store.Write(ctx, KeyGitHub, "gh_abc\n42"); err != nil {
		t.Fatal(err)
	}

	got, err := store.Read(ctx, KeyGitHub)
	if err != nil {
		t.Fatal(err)
	}
	if got != "gh_abc" {
		t.Errorf("Read = %q, want %q", got, "gh_abc")
	}

	raw, err := afero.ReadFile(fsys, "/home/user/.pipeline/gh_token")
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "gh_abc\n42" {
		t.Errorf("file contents = %q, want %q", raw, "gh_abc\n42")
	}
}

func TestFileStoreReadTrimsTrailingWhitespace(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemStore(t)

	if err := store.Write(ctx, KeyHost, "host_xyz \r\n"); err != nil {
		t.Fatal(err)
	}
	got, err := store.Read(ctx, KeyHost)
	if err != nil {
		t.Fatal(err)
	}
	if got != "host_xyz" {
		t.Errorf("Read = %q, want %q", got, "host_xyz")
	}
}

func TestFileStoreReadMissing(t *testing.T) {
	store, _ := newMemStore(t)

	_, err := store.Read(context.Background(), KeyHost)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read error = %v, want ErrNotFound", err)
	}
}

func TestFileStoreReadEmptyFile(t *testing.T) {
	store, fsys := newMemStore(t)
	if err := afero.WriteFile(fsys, "/home/user/.pipeline/app_token", []byte("\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := store.Read(context.Background(), KeyHost)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Read error = %v, want empty file error", err)
	}
}

func TestFileStoreWriteReplaces(t *testing.T) {
	ctx := context.Background()
	store, fsys := newMemStore(t)

	if err := store.Write(ctx, KeyHost, "a-much-longer-first-token"); err != nil {
		t.Fatal(err)
	}
	if err := store.Write(ctx, KeyHost, "short"); err != nil {
		t.Fatal(err)
	}

	raw, err := afero.ReadFile(fsys, "/home/user/.pipeline/app_token")
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "short" {
		t.Errorf("file contents = %q, want %q", raw, "short")
	}
}

func TestFileStoreWriteIsAtomic(t *testing.T) {
	ctx := context.Background()

	t.Run("failed write keeps previous record", func(t *testing.T) {
		base := afero.NewMemMapFs()
		good, err := NewFileStore("/tokens", WithFs(base))
		if err != nil {
			t.Fatal(err)
		}
		if err := good.Write(ctx, KeyHost, "old-token"); err != nil {
			t.Fatal(err)
		}

		broken, err := NewFileStore("/tokens", WithFs(truncatingFs{Fs: base}))
		if err != nil {
			t.Fatal(err)
		}
		if err := broken.Write(ctx, KeyHost, "new-token-that-gets-cut"); err == nil {
			t.Fatal("expected write error")
		}

		got, err := good.Read(ctx, KeyHost)
		if err != nil {
			t.Fatal(err)
		}
		if got != "old-token" {
			t.Errorf("Read after failed write = %q, want %q", got, "old-token")
		}
		assertNoTempFiles(t, base, "/tokens")
	})

	t.Run("failed first write leaves no record", func(t *testing.T) {
		base := afero.NewMemMapFs()
		broken, err := NewFileStore("/tokens", WithFs(truncatingFs{Fs: base}))
		if err != nil {
			t.Fatal(err)
		}
		if err := broken.Write(ctx, KeyGitHub, "gh_abc\n42"); err == nil {
			t.Fatal("expected write error")
		}

		_, err = broken.Read(ctx, KeyGitHub)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Read error = %v, want ErrNotFound", err)
		}
		assertNoTempFiles(t, base, "/tokens")
	})

	t.Run("cancelled context writes nothing", func(t *testing.T) {
		store, _ := newMemStore(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		if err := store.Write(cancelled, KeyHost, "token"); !errors.Is(err, context.Canceled) {
			t.Fatalf("Write error = %v, want context.Canceled", err)
		}
		if _, err := store.Read(ctx, KeyHost); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Read error = %v, want ErrNotFound", err)
		}
	})
}

func assertNoTempFiles(t *testing.T, fsys afero.Fs, dir string) {
	t.Helper()
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestFileStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemStore(t)

	// Absent record
	if err := store.Delete(ctx, KeyGitHub); err != nil {
		t.Fatalf("Delete on missing record: %v", err)
	}

	if err := store.Write(ctx, KeyGitHub, "gh_abc\n42"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, KeyGitHub); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Read(ctx, KeyGitHub); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read after delete = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, KeyGitHub); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestFileStoreUnknownKey(t *testing.T) {
	store, _ := newMemStore(t)

	if err := store.Write(context.Background(), Key("other"), "x"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestFileStoreOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "tokens")

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := store.Write(ctx, KeyHost, "host_xyz"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, HostTokenFile)
	if store.Location(KeyHost) != path {
		t.Errorf("Location = %q, want %q", store.Location(KeyHost), path)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %04o, want 0600", perm)
	}

	dirInfo, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0700 {
		t.Errorf("dir mode = %04o, want 0700", perm)
	}

	t.Run("loose permissions tightened", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("unix permission bits only")
		}
		if err := os.Chmod(path, 0644); err != nil {
			t.Fatal(err)
		}
		if got, err := store.Read(ctx, KeyHost); err != nil || got != "host_xyz" {
			t.Fatalf("Read = (%q, %v), want host_xyz", got, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("file mode after Read = %04o, want 0600", perm)
		}
	})
}

// TestFileStoreReadsExistingCache covers records written outside this store
// under a default umask.
func TestFileStoreReadsExistingCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, HostTokenFile), []byte("host_xyz\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, GitHubTokenFile), []byte("gh_abc\n42\n"), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key  Key
		want string
	}{
		{KeyHost, "host_xyz"},
		{KeyGitHub, "gh_abc"},
	}
	for _, tt := range tests {
		got, err := store.Read(ctx, tt.key)
		if err != nil {
			t.Fatalf("Read(%s): %v", tt.key, err)
		}
		if got != tt.want {
			t.Errorf("Read(%s) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
