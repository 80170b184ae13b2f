package core

import (
	"context"
	"sync"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// --- MockSessionResolver ---

// MockSessionResolver implements SessionResolver for testing. It returns
// a predefined claims bundle, a fixed error, or delegates to ResolveFunc
// when set. Every token passed to Resolve is recorded in Calls.
type MockSessionResolver struct {
	Claims types.SessionClaims
	Err    error

	// ResolveFunc overrides Claims/Err when set, allowing dynamic
	// behavior based on the token value.
	ResolveFunc func(ctx context.Context, token string) (types.SessionClaims, error)

	mu    sync.Mutex
	Calls []string
}

// Resolve implements SessionResolver.
func (m *MockSessionResolver) Resolve(ctx context.Context, token string) (types.SessionClaims, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, token)
	m.mu.Unlock()

	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, token)
	}
	if m.Err != nil {
		return types.SessionClaims{}, m.Err
	}
	return m.Claims, nil
}

// --- MockAccountReader ---

// MockAccountReader implements AccountReader for testing. Accounts are
// looked up in the Accounts map; missing IDs return a not-found AppError
// unless Err or GetFunc overrides the behavior.
type MockAccountReader struct {
	Accounts map[string]types.Account
	Err      error

	GetFunc func(ctx context.Context, id string) (types.Account, error)

	mu    sync.Mutex
	Calls []string
}

// GetByID implements AccountReader.
func (m *MockAccountReader) GetByID(ctx context.Context, id string) (types.Account, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, id)
	m.mu.Unlock()

	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	if m.Err != nil {
		return types.Account{}, m.Err
	}
	if a, ok := m.Accounts[id]; ok {
		return a, nil
	}
	return types.Account{}, types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", nil)
}
