package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	dto "github.com/prometheus/client_model/go"

	"github.com/keywarden/keywarden/internal/credential"
	"github.com/keywarden/keywarden/internal/metrics"
	"github.com/keywarden/keywarden/internal/model"
	"github.com/keywarden/keywarden/internal/store"
)

// testEnv wires every service against one in-memory store.
type testEnv struct {
	store   *store.Store
	hasher  *credential.Hasher
	metrics *metrics.Metrics
	auth    *AuthService
	keys    *KeyService
	audit   *AuditService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.Open("", store.Options{})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hasher := credential.NewHasher(bcrypt.MinCost)
	m := metrics.New("test")
	logger := discardLogger()

	return &testEnv{
		store:   st,
		hasher:  hasher,
		metrics: m,
		auth:    NewAuthService(st, hasher, m, logger),
		keys:    NewKeyService(st, credential.NewGenerator(), hasher, 0, m, logger),
		audit:   NewAuditService(st, 0, m, logger),
	}
}

// seedKey stores a credential for raw and returns it.
func (e *testEnv) seedKey(t *testing.T, raw string, isAdmin bool) *model.Credential {
	t.Helper()
	hashed, err := e.hasher.Hash(raw)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	cred := &model.Credential{HashedSecret: hashed, IsAdmin: isAdmin, Notes: "seed"}
	if err := e.store.CreateCredential(context.Background(), cred); err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}
	return cred
}

// fakeCredentialStore lets tests inject store failures.
type fakeCredentialStore struct {
	mu         sync.Mutex
	createErrs []error
	creates    int
	listErr    error
	deleteErr  error
	creds      []model.Credential
}

func (f *fakeCredentialStore) CreateCredential(ctx context.Context, cred *model.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	cred.ID = int64(len(f.creds) + 1)
	f.creds = append(f.creds, *cred)
	return nil
}

func (f *fakeCredentialStore) GetCredential(ctx context.Context, id int64) (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.creds {
		if f.creds[i].ID == id {
			c := f.creds[i]
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeCredentialStore) ListCredentials(ctx context.Context) ([]model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Credential(nil), f.creds...), nil
}

func (f *fakeCredentialStore) DeleteCredential(ctx context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return store.ErrNotFound
}

// fakeAuditStore fails every write.
type fakeAuditStore struct {
	err error
}

func (f *fakeAuditStore) CreateAuditEntry(ctx context.Context, entry *model.AuditEntry) error {
	return f.err
}

func (f *fakeAuditStore) ListAuditEntries(ctx context.Context, filter model.AuditFilter) ([]model.AuditEntry, error) {
	return nil, f.err
}

func (f *fakeAuditStore) CountAuditEntries(ctx context.Context, filter model.AuditFilter) (int64, error) {
	return 0, f.err
}

var errBoom = errors.New("boom")

// counterValue reads one labelled counter from m's registry.
func counterValue(t *testing.T, m *metrics.Metrics, name, label, value string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if label == "" || hasLabel(metric, label, value) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
