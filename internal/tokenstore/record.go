package tokenstore

import (
	"context"
	"errors"
	"strings"
)

// GitHubRecord is the cached GitHub authorization grant.
type GitHubRecord struct {
	Token string
	// AuthorizationID identifies the grant on GitHub for manual revocation.
	// It is persisted but not restored by ReadGitHubRecord.
	AuthorizationID string
}

// MarshalText encodes the record as two lines: token, then authorization id.
func (r GitHubRecord) MarshalText() ([]byte, error) {
	if r.Token == "" || r.AuthorizationID == "" {
		return nil, errors.New("github record requires token and authorization id")
	}
	if strings.ContainsAny(r.Token, "\r\n") || strings.ContainsAny(r.AuthorizationID, "\r\n") {
		return nil, errors.New("github record fields must be single-line")
	}
	return []byte(r.Token + "\n" + r.AuthorizationID), nil
}

// HostRecord is the cached token issued by the host application.
type HostRecord struct {
	Token string
}

// MarshalText encodes the record as a single line.
func (r HostRecord) MarshalText() ([]byte, error) {
	if r.Token == "" {
		return nil, errors.New("host record requires a token")
	}
	if strings.ContainsAny(r.Token, "\r\n") {
		return nil, errors.New("host token must be single-line")
	}
	return []byte(r.Token), nil
}

// WriteGitHubRecord serializes and stores rec under KeyGitHub.
func WriteGitHubRecord(ctx context.Context, store TokenStore, rec GitHubRecord) error {
	data, err := rec.MarshalText()
	if err != nil {
		return err
	}
	return store.Write(ctx, KeyGitHub, string(data))
}

// ReadGitHubRecord loads the GitHub record. Only the token is restored.
func ReadGitHubRecord(ctx context.Context, store TokenStore) (GitHubRecord, error) {
	token, err := store.Read(ctx, KeyGitHub)
	if err != nil {
		return GitHubRecord{}, err
	}
	return GitHubRecord{Token: token}, nil
}

// WriteHostRecord serializes and stores rec under KeyHost.
func WriteHostRecord(ctx context.Context, store TokenStore, rec HostRecord) error {
	data, err := rec.MarshalText()
	if err != nil {
		return err
	}
	return store.Write(ctx, KeyHost, string(data))
}

// ReadHostRecord loads the host record.
func ReadHostRecord(ctx context.Context, store TokenStore) (HostRecord, error) {
	token, err := store.Read(ctx, KeyHost)
	if err != nil {
		return HostRecord{}, err
	}
	return HostRecord{Token: token}, nil
}
