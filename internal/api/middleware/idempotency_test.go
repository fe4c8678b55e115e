package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/example/ec-order-lifecycle/internal/domain/access"
	"github.com/example/ec-order-lifecycle/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeReserver struct {
	mu       sync.Mutex
	keys     map[string]bool
	released []string
	err      error
}

func newFakeReserver() *fakeReserver {
	return &fakeReserver{keys: make(map[string]bool)}
}

func (f *fakeReserver) Reserve(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeReserver) Release(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	f.released = append(f.released, key)
	return nil
}

func idempotentRequest(callerID, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	ctx := WithCaller(req.Context(), access.Caller{ID: callerID, Role: user.RoleCustomer})
	return req.WithContext(ctx)
}

func TestIdempotency_RejectsDuplicate(t *testing.T) {
	reserver := newFakeReserver()
	calls := 0
	handler := Idempotency(reserver, "orders", zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest("user-1", "abc"))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest("user-1", "abc"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate request")

	assert.Equal(t, 1, calls)
	assert.True(t, reserver.keys["idem:orders:user-1:abc"])
}

func TestIdempotency_KeysAreScopedPerCaller(t *testing.T) {
	reserver := newFakeReserver()
	handler := Idempotency(reserver, "orders", zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	for _, callerID := range []string{"user-1", "user-2"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, idempotentRequest(callerID, "same-key"))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
}

func TestIdempotency_NoHeaderPassesThrough(t *testing.T) {
	reserver := newFakeReserver()
	calls := 0
	handler := Idempotency(reserver, "orders", zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, idempotentRequest("user-1", ""))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, reserver.keys)
}

func TestIdempotency_FailureReleasesKey(t *testing.T) {
	reserver := newFakeReserver()
	status := http.StatusConflict
	handler := Idempotency(reserver, "orders", zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest("user-1", "retry-me"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{"idem:orders:user-1:retry-me"}, reserver.released)

	status = http.StatusCreated
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest("user-1", "retry-me"))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestIdempotency_StoreDownFailsOpen(t *testing.T) {
	reserver := newFakeReserver()
	reserver.err = errors.New("connection refused")
	handler := Idempotency(reserver, "orders", zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest("user-1", "abc"))
	assert.Equal(t, http.StatusCreated, rec.Code)
}
