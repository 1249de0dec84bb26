package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/grosync/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidGroError())

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error != "Invalid Gro value" {
		t.Errorf("error = %q, want %q", body.Error, "Invalid Gro value")
	}
	if body.Code != model.ErrCodeInvalidGro {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidGro)
	}
	if body.Category != model.CategoryValidation {
		t.Errorf("category = %q, want %q", body.Category, model.CategoryValidation)
	}
}

// TestWriteInternalServerError_HidesDetails は500レスポンスが一般的なメッセージのみ返すことを検証する。
func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var raw map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if raw["error"] != "Internal server error" {
		t.Errorf("error = %q", raw["error"])
	}
	if raw["code"] != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", raw["code"], model.ErrCodeInternal)
	}
}
