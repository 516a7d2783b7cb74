package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keywarden/keywarden/internal/credential"
	"github.com/keywarden/keywarden/internal/metrics"
	"github.com/keywarden/keywarden/internal/model"
)

// AuthService resolves raw API keys to stored credentials.
type AuthService struct {
	store   CredentialLister
	hasher  *credential.Hasher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAuthService creates an AuthService. m may be nil.
func NewAuthService(store CredentialLister, hasher *credential.Hasher, m *metrics.Metrics, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:   store,
		hasher:  hasher,
		metrics: m,
		logger:  logger,
	}
}

// Resolve returns the credential whose hash verifies rawKey.
//
// Hashes are salted per call, so there is no index to look the secret up by:
// every stored hash is checked in turn with bcrypt, and the first match wins.
// The cost is one bcrypt verification per issued key, which is fine for tens
// to low hundreds of keys and is the scaling ceiling of this design.
func (s *AuthService) Resolve(ctx context.Context, rawKey string) (*model.Credential, error) {
	start := time.Now()
	if rawKey == "" {
		s.metrics.RecordValidation(metrics.ResultEmpty, time.Since(start))
		return nil, ErrUnauthenticated
	}

	creds, err := s.store.ListCredentials(ctx)
	if err != nil {
		s.metrics.RecordValidation(metrics.ResultError, time.Since(start))
		return nil, fmt.Errorf("list api keys: %w", err)
	}

	for i := range creds {
		if err := ctx.Err(); err != nil {
			s.metrics.RecordValidation(metrics.ResultError, time.Since(start))
			return nil, err
		}
		if s.hasher.Verify(rawKey, creds[i].HashedSecret) {
			s.metrics.RecordValidation(metrics.ResultSuccess, time.Since(start))
			s.logger.Debug("api key resolved", "key_id", creds[i].ID, "is_admin", creds[i].IsAdmin)
			return &creds[i], nil
		}
	}

	s.metrics.RecordValidation(metrics.ResultInvalid, time.Since(start))
	s.logger.Debug("api key did not match any stored key", "candidates", len(creds))
	return nil, ErrUnauthenticated
}
