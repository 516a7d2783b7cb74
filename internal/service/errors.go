package service

import (
	"context"
	"errors"

	"github.com/keywarden/keywarden/internal/model"
)

var (
	// ErrUnauthenticated means no stored credential matches the presented secret.
	ErrUnauthenticated = errors.New("invalid api key")

	// ErrInsufficientPrivilege means the caller is authenticated but not an admin.
	ErrInsufficientPrivilege = errors.New("insufficient privileges")

	// ErrNotFound means the referenced credential does not exist.
	ErrNotFound = errors.New("api key not found")

	// ErrDuplicateHash means a freshly hashed secret collided with a stored
	// one. Safe to retry; nothing was persisted.
	ErrDuplicateHash = errors.New("api key collision")
)

// CredentialLister is the read path the authenticator needs.
type CredentialLister interface {
	ListCredentials(ctx context.Context) ([]model.Credential, error)
}

// CredentialStore is the persistence the key lifecycle needs.
type CredentialStore interface {
	CredentialLister
	CreateCredential(ctx context.Context, cred *model.Credential) error
	GetCredential(ctx context.Context, id int64) (*model.Credential, error)
	DeleteCredential(ctx context.Context, id int64) error
}

// AuditStore is the persistence the audit logger needs.
type AuditStore interface {
	CreateAuditEntry(ctx context.Context, entry *model.AuditEntry) error
	ListAuditEntries(ctx context.Context, f model.AuditFilter) ([]model.AuditEntry, error)
	CountAuditEntries(ctx context.Context, f model.AuditFilter) (int64, error)
}

func requireAdmin(caller *model.Credential) error {
	if caller == nil || !caller.IsAdmin {
		return ErrInsufficientPrivilege
	}
	return nil
}
