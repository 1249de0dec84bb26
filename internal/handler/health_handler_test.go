package handler

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestHealth_DBReachable_Returns200(t *testing.T) {
	h := NewRouter(&RouterDeps{CORSAllowedOrigin: "*", DB: &mockPinger{}, ProfileService: &mockProfileService{}})

	rec := doRequest(t, h, http.MethodGet, "/health", "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("body = %s", got)
	}
}

func TestHealth_DBDown_Returns503(t *testing.T) {
	h := NewRouter(&RouterDeps{
		CORSAllowedOrigin: "*",
		DB:                &mockPinger{err: errors.New("connection refused")},
		ProfileService:    &mockProfileService{},
	})

	rec := doRequest(t, h, http.MethodGet, "/health", "", "")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
