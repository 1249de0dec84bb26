package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgrijalva/jwt-go"

	"github.com/hitoshi/grosync/internal/auth"
	"github.com/hitoshi/grosync/internal/middleware"
	"github.com/hitoshi/grosync/internal/model"
	"github.com/hitoshi/grosync/internal/profile"
)

// --- モック定義 ---

type mockProfileService struct {
	getFn      func(ctx context.Context, uid string) (*model.Profile, error)
	syncFn     func(ctx context.Context, uid string, req *profile.SyncRequest) (*profile.SyncResult, error)
	purchaseFn func(ctx context.Context, uid, planID string) (*profile.PurchaseResult, error)
	cancelFn   func(ctx context.Context, uid string) error
}

func (m *mockProfileService) Get(ctx context.Context, uid string) (*model.Profile, error) {
	return m.getFn(ctx, uid)
}
func (m *mockProfileService) Sync(ctx context.Context, uid string, req *profile.SyncRequest) (*profile.SyncResult, error) {
	return m.syncFn(ctx, uid, req)
}
func (m *mockProfileService) Purchase(ctx context.Context, uid, planID string) (*profile.PurchaseResult, error) {
	return m.purchaseFn(ctx, uid, planID)
}
func (m *mockProfileService) Cancel(ctx context.Context, uid string) error {
	return m.cancelFn(ctx, uid)
}

// tokenVerifier は "token-<uid>" をsub=<uid>として受け付ける検証器。
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, rawToken string) (*auth.Claims, error) {
	uid, ok := strings.CutPrefix(rawToken, "token-")
	if !ok {
		return nil, errors.New("signature is invalid")
	}
	return &auth.Claims{StandardClaims: jwt.StandardClaims{Subject: uid}}, nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

func newTestRouter(svc ProfileServiceInterface) http.Handler {
	return NewRouter(&RouterDeps{
		CORSAllowedOrigin: "*",
		Verifier:          tokenVerifier{},
		ProfileService:    svc,
		DB:                &mockPinger{},
	})
}

func doRequest(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}
