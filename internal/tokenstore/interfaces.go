package tokenstore

import (
	"context"
	"errors"
)

// Key names one of the fixed cache slots.
type Key string

const (
	// KeyGitHub holds the GitHub authorization grant.
	KeyGitHub Key = "github"
	// KeyHost holds the token issued by the host application.
	KeyHost Key = "host"
)

// Keys lists every slot a store manages.
var Keys = []Key{KeyGitHub, KeyHost}

// ErrNotFound is returned by Read when a slot holds no record.
var ErrNotFound = errors.New("token not found")

// TokenStore reads and writes token records to persistent storage.
type TokenStore interface {
	// Read returns the first line of the stored record, trimmed of trailing
	// whitespace. Returns ErrNotFound if the slot is empty.
	Read(ctx context.Context, key Key) (string, error)

	// Write replaces the record. A failed write leaves either the previous
	// record or no record, never a partial one.
	Write(ctx context.Context, key Key, value string) error

	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, key Key) error

	// Location describes where the record for key lives, for user-facing messages.
	Location(key Key) string
}
