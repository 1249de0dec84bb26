package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hitoshi/grosync/internal/middleware"
	"github.com/hitoshi/grosync/internal/model"
	"github.com/hitoshi/grosync/internal/profile"
)

// maxBodyBytes はPOSTボディの上限サイズ。
const maxBodyBytes = 1 << 20

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	// Get はuidのプロフィールを返す。存在しない場合はnil。
	Get(ctx context.Context, uid string) (*model.Profile, error)
	// Sync はクライアントの状態を検査して保存する。
	Sync(ctx context.Context, uid string, req *profile.SyncRequest) (*profile.SyncResult, error)
	// Purchase はプレミアム購読を有効にする。
	Purchase(ctx context.Context, uid, planID string) (*profile.PurchaseResult, error)
	// Cancel はプレミアム購読を解除する。
	Cancel(ctx context.Context, uid string) error
}

// ProfileHandler はプロフィール同期のHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{
		service: service,
	}
}

// profileData はusersテーブルの1行のJSON表現。キーはカラム名と一致させる。
type profileData struct {
	UID              string         `json:"uid"`
	Email            string         `json:"email"`
	DisplayName      string         `json:"display_name"`
	Level            int            `json:"level"`
	XP               int64          `json:"xp"`
	Gro              int64          `json:"gro"`
	CurrentLand      string         `json:"current_land"`
	Inventory        []any          `json:"inventory"`
	GameData         map[string]any `json:"game_data"`
	CreatedAt        int64          `json:"created_at"`
	LastSyncedAt     int64          `json:"last_synced_at"`
	IsPremium        int            `json:"is_premium"`
	SubscriptionEnd  int64          `json:"subscription_end"`
	SubscriptionPlan *string        `json:"subscription_plan"`
}

type getProfileResponse struct {
	Found bool         `json:"found"`
	Data  *profileData `json:"data,omitempty"`
}

type syncResponse struct {
	Success  bool  `json:"success"`
	SyncedAt int64 `json:"syncedAt"`
}

type purchaseResponse struct {
	Success         bool   `json:"success"`
	IsPremium       int    `json:"is_premium"`
	Plan            string `json:"plan"`
	SubscriptionEnd int64  `json:"subscription_end"`
}

type cancelResponse struct {
	Success   bool `json:"success"`
	IsPremium int  `json:"is_premium"`
}

func toProfileData(p *model.Profile) *profileData {
	inventory := p.Inventory
	if inventory == nil {
		inventory = []any{}
	}
	gameData := p.GameData
	if gameData == nil {
		gameData = map[string]any{}
	}
	isPremium := 0
	if p.IsPremium {
		isPremium = 1
	}
	return &profileData{
		UID:              p.UID,
		Email:            p.Email,
		DisplayName:      p.DisplayName,
		Level:            p.Level,
		XP:               p.XP,
		Gro:              p.Gro,
		CurrentLand:      p.CurrentLand,
		Inventory:        inventory,
		GameData:         gameData,
		CreatedAt:        p.CreatedAt,
		LastSyncedAt:     p.LastSyncedAt,
		IsPremium:        isPremium,
		SubscriptionEnd:  p.SubscriptionEnd,
		SubscriptionPlan: p.SubscriptionPlan,
	}
}

// GetProfile はプロフィールを返す。存在しない場合もfound:falseで200を返す。
// GET /api/users/{uid}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := authenticatedUID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), uid)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if p == nil {
		writeJSON(w, http.StatusOK, getProfileResponse{Found: false})
		return
	}

	writeJSON(w, http.StatusOK, getProfileResponse{Found: true, Data: toProfileData(p)})
}

// SyncProfile はクライアントの状態を保存する。
// POST /api/users/{uid}
func (h *ProfileHandler) SyncProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := authenticatedUID(w, r)
	if !ok {
		return
	}

	var req profile.SyncRequest
	if err := decodeBody(w, r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, bodyError(err))
		return
	}

	result, err := h.service.Sync(r.Context(), uid, &req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{Success: true, SyncedAt: result.SyncedAt})
}

// Purchase はプレミアム購読を有効にする。
// POST /api/users/{uid}/purchase
func (h *ProfileHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	uid, ok := authenticatedUID(w, r)
	if !ok {
		return
	}

	var req profile.PurchaseRequest
	// ボディ省略はplanId未指定として扱う
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, bodyError(err))
		return
	}

	result, err := h.service.Purchase(r.Context(), uid, req.PlanID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, purchaseResponse{
		Success:         true,
		IsPremium:       1,
		Plan:            result.Plan,
		SubscriptionEnd: result.SubscriptionEnd,
	})
}

// Cancel はプレミアム購読を解除する。
// POST /api/users/{uid}/cancel
func (h *ProfileHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	uid, ok := authenticatedUID(w, r)
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), uid); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cancelResponse{Success: true, IsPremium: 0})
}

// MissingUID はパスにuidが無いリクエストに400を返す。
// /api/users, /api/users/
func (h *ProfileHandler) MissingUID(w http.ResponseWriter, r *http.Request) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingUIDError())
}

// authenticatedUID は認証ミドルウェアが検証したuidを返す。
func authenticatedUID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, err := middleware.UIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewMissingAuthorizationError())
		return "", false
	}
	return uid, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func bodyError(err error) *model.APIError {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return model.NewInvalidBodyError("body too large")
	case errors.Is(err, io.EOF):
		return model.NewInvalidBodyError("empty body")
	default:
		return model.NewInvalidBodyError("malformed JSON")
	}
}
