package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/keywarden/keywarden/internal/credential"
	"github.com/keywarden/keywarden/internal/metrics"
	"github.com/keywarden/keywarden/internal/model"
	"github.com/keywarden/keywarden/internal/store"
)

// DefaultCreateAttempts bounds how many fresh secrets CreateKey tries when
// the store reports a hash collision.
const DefaultCreateAttempts = 3

// IssuedKey is the result of CreateKey. Secret is the raw API key; it is
// returned exactly once and is never stored or logged.
type IssuedKey struct {
	Secret     string
	Credential *model.Credential
}

// KeyService creates and deletes credentials on behalf of admin callers.
type KeyService struct {
	store    CredentialStore
	gen      *credential.Generator
	hasher   *credential.Hasher
	attempts int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewKeyService creates a KeyService. m may be nil; attempts < 1 selects
// DefaultCreateAttempts.
func NewKeyService(st CredentialStore, gen *credential.Generator, hasher *credential.Hasher, attempts int, m *metrics.Metrics, logger *slog.Logger) *KeyService {
	if attempts < 1 {
		attempts = DefaultCreateAttempts
	}
	return &KeyService{
		store:    st,
		gen:      gen,
		hasher:   hasher,
		attempts: attempts,
		metrics:  m,
		logger:   logger,
	}
}

// CreateKey issues a new key for an admin caller. A hash collision is retried
// with a fresh secret; each failed attempt leaves nothing persisted. An
// unreadable entropy source is returned immediately and wraps
// credential.ErrEntropySourceUnavailable.
func (s *KeyService) CreateKey(ctx context.Context, caller *model.Credential, notes string, isAdmin bool) (*IssuedKey, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.attempts; attempt++ {
		secret, err := s.gen.Generate()
		if err != nil {
			return nil, err
		}
		hashed, err := s.hasher.Hash(secret)
		if err != nil {
			return nil, err
		}

		cred := &model.Credential{
			HashedSecret: hashed,
			IsAdmin:      isAdmin,
			Notes:        notes,
		}
		err = s.store.CreateCredential(ctx, cred)
		if errors.Is(err, store.ErrDuplicateHash) {
			s.logger.Warn("api key hash collision, retrying", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create api key: %w", err)
		}

		s.metrics.RecordKeyCreated(cred.Tier())
		s.logger.Info("api key created",
			"key_id", cred.ID,
			"is_admin", cred.IsAdmin,
			"created_by", caller.ID,
		)
		return &IssuedKey{Secret: secret, Credential: cred}, nil
	}

	return nil, ErrDuplicateHash
}

// DeleteKey permanently removes a credential for an admin caller. The next
// Resolve presenting the deleted secret fails with ErrUnauthenticated.
func (s *KeyService) DeleteKey(ctx context.Context, caller *model.Credential, id int64) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}

	if err := s.store.DeleteCredential(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete api key: %w", err)
	}

	s.metrics.RecordKeyDeleted()
	s.logger.Info("api key deleted", "key_id", id, "deleted_by", caller.ID, "self", id == caller.ID)
	return nil
}

// GetKey returns one credential's metadata for an admin caller.
func (s *KeyService) GetKey(ctx context.Context, caller *model.Credential, id int64) (*model.Credential, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	cred, err := s.store.GetCredential(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return cred, nil
}

// ListKeys returns all credentials for an admin caller.
func (s *KeyService) ListKeys(ctx context.Context, caller *model.Credential) ([]model.Credential, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	creds, err := s.store.ListCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return creds, nil
}
