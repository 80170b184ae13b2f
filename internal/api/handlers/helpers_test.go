package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/config"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/core"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/quota"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// testNow is a Saturday afternoon UTC, mid-window in the reference
// timezone.
var testNow = time.Date(2026, 8, 15, 13, 0, 0, 0, time.UTC)

func cents(v int64) *int64 { return &v }
func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// newTestRuntime builds the derived configuration with defaults only.
func newTestRuntime(t *testing.T) *config.Runtime {
	t.Helper()
	rt, err := config.BuildRuntime(&config.Config{
		Environment: "local",
		Quota:       config.QuotaConfig{Timezone: "America/Sao_Paulo"},
	})
	require.NoError(t, err)
	return rt
}

// newTestTracker returns a real tracker over an in-memory store, the
// simplest honest QuotaService for handler tests.
func newTestTracker(t *testing.T, rt *config.Runtime) (*quota.Tracker, *quota.MemStore) {
	t.Helper()
	store := quota.NewMemStore()
	return quota.NewTracker(store, rt.Windows, testLogger()), store
}

// mockQuota is a func-field QuotaService for forcing error paths.
type mockQuota struct {
	TryConsumeFunc func(ctx context.Context, accountID string, name types.CounterName, limit *int, now time.Time) (quota.Result, error)
	SnapshotFunc   func(ctx context.Context, accountID string, now time.Time) (map[types.CounterName]quota.CounterView, error)
	ResetFunc      func(ctx context.Context, accountID string, name types.CounterName, now time.Time) error

	mu         sync.Mutex
	ResetCalls []types.CounterName
}

func (m *mockQuota) TryConsume(ctx context.Context, accountID string, name types.CounterName, limit *int, now time.Time) (quota.Result, error) {
	if m.TryConsumeFunc != nil {
		return m.TryConsumeFunc(ctx, accountID, name, limit, now)
	}
	return quota.Result{Allowed: true}, nil
}

func (m *mockQuota) Snapshot(ctx context.Context, accountID string, now time.Time) (map[types.CounterName]quota.CounterView, error) {
	if m.SnapshotFunc != nil {
		return m.SnapshotFunc(ctx, accountID, now)
	}
	return map[types.CounterName]quota.CounterView{}, nil
}

func (m *mockQuota) Reset(ctx context.Context, accountID string, name types.CounterName, now time.Time) error {
	m.mu.Lock()
	m.ResetCalls = append(m.ResetCalls, name)
	m.mu.Unlock()
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, accountID, name, now)
	}
	return nil
}

// mockAccountStore is a func-field AdminAccountRepo over a map.
type mockAccountStore struct {
	Accounts map[string]types.Account

	GetFunc    func(ctx context.Context, id string) (types.Account, error)
	UpdateFunc func(ctx context.Context, a types.Account) error

	mu      sync.Mutex
	Updated []types.Account
}

func (m *mockAccountStore) GetByID(ctx context.Context, id string) (types.Account, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	a, ok := m.Accounts[id]
	if !ok {
		return types.Account{}, types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", nil)
	}
	return a, nil
}

func (m *mockAccountStore) UpdateEntitlements(ctx context.Context, a types.Account) error {
	m.mu.Lock()
	m.Updated = append(m.Updated, a)
	m.mu.Unlock()
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, a)
	}
	if m.Accounts != nil {
		m.Accounts[a.ID] = a
	}
	return nil
}

// serveWithAccount routes the request through r with the account already
// in context, the state the entitlement gate leaves behind.
func serveWithAccount(r chi.Router, req *http.Request, account types.Account) *httptest.ResponseRecorder {
	req = req.WithContext(types.WithAccount(req.Context(), account))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) []types.Diagnostic {
	t.Helper()
	var resp struct {
		Data     json.RawMessage    `json:"data"`
		Warnings []types.Diagnostic `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	if dest != nil {
		require.NoError(t, json.Unmarshal(resp.Data, dest))
	}
	return resp.Warnings
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) core.ErrorDetail {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}
