package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/florianilch/pipeline-auth/internal/auth"
	"github.com/florianilch/pipeline-auth/internal/hostauth"
	"github.com/florianilch/pipeline-auth/internal/tokenstore"
)

type servers struct {
	github, host        *httptest.Server
	githubHits, hostHit atomic.Int32
	hostStatus          int
}

func newServers(t *testing.T) *servers {
	t.Helper()
	s := &servers{hostStatus: http.StatusAccepted}

	gh := http.NewServeMux()
	gh.HandleFunc("POST /api/v3/authorizations", func(w http.ResponseWriter, r *http.Request) {
		s.githubHits.Add(1)
		if user, pass, _ := r.BasicAuth(); user != "octocat" || pass != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message": "Bad credentials"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 42, "token": "gh_abc"}`))
	})
	s.github = httptest.NewServer(gh)
	t.Cleanup(s.github.Close)

	host := http.NewServeMux()
	host.HandleFunc("POST /api/auth", func(w http.ResponseWriter, r *http.Request) {
		s.hostHit.Add(1)
		if s.hostStatus != http.StatusAccepted {
			w.WriteHeader(s.hostStatus)
			_, _ = w.Write([]byte("denied"))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"token": "host_xyz"}`))
	})
	s.host = httptest.NewServer(host)
	t.Cleanup(s.host.Close)

	return s
}

func newTestConfig(t *testing.T, s *servers) *Config {
	t.Helper()
	cfg := &Config{
		Host:    HostConfig{URL: s.host.URL},
		GitHub:  GitHubConfig{BaseURL: s.github.URL},
		Storage: StorageConfig{Type: TokenStorageTypeFile, Dir: filepath.Join(t.TempDir(), "tokens")},
	}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestAppToken(t *testing.T) {
	s := newServers(t)
	cfg := newTestConfig(t, s)
	var out bytes.Buffer

	a, err := New(cfg, WithIO(strings.NewReader("octocat\nhunter2\n"), &out), WithoutColor())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	token, err := a.Token(ctx)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "host_xyz" {
		t.Errorf("token = %q, want host_xyz", token)
	}

	ghFile, err := os.ReadFile(filepath.Join(cfg.Storage.Dir, tokenstore.GitHubTokenFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(ghFile) != "gh_abc\n42" {
		t.Errorf("github token file = %q", ghFile)
	}
	hostFile, err := os.ReadFile(filepath.Join(cfg.Storage.Dir, tokenstore.HostTokenFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(hostFile) != "host_xyz" {
		t.Errorf("host token file = %q", hostFile)
	}

	messages := out.String()
	for _, want := range []string{"Github username: ", "Password: ", "Successfully logged into Github", "Successfully logged into " + s.host.URL} {
		if !strings.Contains(messages, want) {
			t.Errorf("console output missing %q:\n%s", want, messages)
		}
	}

	// A fresh App over the same directory serves from cache
	again, err := New(cfg, WithIO(strings.NewReader(""), &out))
	if err != nil {
		t.Fatal(err)
	}
	if token, err := again.Token(ctx); err != nil || token != "host_xyz" {
		t.Errorf("cached Token = (%q, %v)", token, err)
	}
	if s.githubHits.Load() != 1 || s.hostHit.Load() != 1 {
		t.Errorf("github hits = %d, host hits = %d, want 1 and 1", s.githubHits.Load(), s.hostHit.Load())
	}
}

func TestAppBadCredentials(t *testing.T) {
	s := newServers(t)
	cfg := newTestConfig(t, s)

	a, err := New(cfg, WithIO(strings.NewReader("octocat\nwrong\n"), &bytes.Buffer{}), WithoutColor())
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.Token(context.Background())
	var authErr *auth.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want AuthenticationError", err)
	}
	if s.hostHit.Load() != 0 {
		t.Error("host contacted after failed github login")
	}

	status, err := a.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, slot := range status {
		if slot.Cached {
			t.Errorf("%s token cached after failed login", slot.Name)
		}
	}
}

func TestAppHostRejects(t *testing.T) {
	s := newServers(t)
	s.hostStatus = http.StatusForbidden
	cfg := newTestConfig(t, s)

	a, err := New(cfg, WithIO(strings.NewReader("octocat\nhunter2\n"), &bytes.Buffer{}), WithoutColor())
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.Token(context.Background())
	var remoteErr *hostauth.RemoteAuthError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("error = %v, want RemoteAuthError", err)
	}
	if remoteErr.StatusCode != http.StatusForbidden || remoteErr.Body != "denied" {
		t.Errorf("remote error = %+v", remoteErr)
	}
}

func TestAppResetAndStatus(t *testing.T) {
	s := newServers(t)
	cfg := newTestConfig(t, s)
	store := tokenstore.NewMemoryStore()
	var out bytes.Buffer

	a, err := New(cfg, WithIO(strings.NewReader("octocat\nhunter2\n"), &out), WithTokenStore(store), WithoutColor())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := a.GitHubToken(ctx); err != nil {
		t.Fatal(err)
	}
	status, err := a.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !status[0].Cached || status[1].Cached {
		t.Errorf("status after github login = %+v", status)
	}
	if status[0].Location != "memory:github" {
		t.Errorf("github location = %q", status[0].Location)
	}

	if err := a.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if err := a.Reset(ctx); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	status, _ = a.Status(ctx)
	if status[0].Cached || status[1].Cached {
		t.Errorf("status after reset = %+v", status)
	}
	wantRevoke := s.github.URL + "/settings/applications"
	if !strings.Contains(out.String(), wantRevoke) {
		t.Errorf("reset advisory missing %q:\n%s", wantRevoke, out.String())
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	// host.url has no default
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error without host url")
	}
}
