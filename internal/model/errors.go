// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, security, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeUIDMismatch        = "UID_MISMATCH"
	ErrCodeMissingUID         = "MISSING_UID"
	ErrCodeInvalidBody        = "INVALID_BODY"
	ErrCodeInvalidGro         = "INVALID_GRO"
	ErrCodeInvalidXP          = "INVALID_XP"
	ErrCodeInvalidPlan        = "INVALID_PLAN"
	ErrCodeGroDeltaExceeded   = "GRO_DELTA_EXCEEDED"
	ErrCodeXPDeltaExceeded    = "XP_DELTA_EXCEEDED"
	ErrCodeInitialGroExceeded = "INITIAL_GRO_EXCEEDED"
	ErrCodeInitialXPExceeded  = "INITIAL_XP_EXCEEDED"
	ErrCodeSyncConflict       = "SYNC_CONFLICT"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// カテゴリ
const (
	CategoryAuth       = "auth"
	CategoryValidation = "validation"
	CategorySecurity   = "security"
	CategorySystem     = "system"
)

// NewMissingAuthorizationError はAuthorizationヘッダー欠落エラーを生成する。
func NewMissingAuthorizationError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Missing or invalid Authorization header",
		Category: CategoryAuth,
		Action:   "Sign in again and retry with a Bearer token.",
	}
}

// NewInvalidTokenError はトークン検証失敗エラーを生成する。
func NewInvalidTokenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  fmt.Sprintf("Invalid token: %s", reason),
		Category: CategoryAuth,
		Action:   "Sign in again to refresh your session.",
	}
}

// NewUIDMismatchError はトークンのsubとパスのuidが一致しない場合のエラーを生成する。
func NewUIDMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeUIDMismatch,
		Message:  "UID mismatch: token subject does not match the requested user",
		Category: CategoryAuth,
		Action:   "You can only access your own profile.",
	}
}

// NewMissingUIDError はパスにuidが含まれない場合のエラーを生成する。
func NewMissingUIDError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingUID,
		Message:  "Missing uid",
		Category: CategoryValidation,
		Action:   "Request /api/users/{uid}.",
	}
}

// NewInvalidBodyError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidBodyError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidBody,
		Message:  fmt.Sprintf("Invalid request body: %s", reason),
		Category: CategoryValidation,
		Action:   "Send a JSON object body.",
	}
}

// NewInvalidGroError はgroが非負の整数でない場合のエラーを生成する。
func NewInvalidGroError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidGro,
		Message:  "Invalid Gro value",
		Category: CategoryValidation,
		Action:   "gro must be a non-negative integer.",
	}
}

// NewInvalidXPError はxpが非負の整数でない場合のエラーを生成する。
func NewInvalidXPError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidXP,
		Message:  "Invalid XP value",
		Category: CategoryValidation,
		Action:   "xp must be a non-negative integer.",
	}
}

// NewInvalidPlanError はplanIdが指定されていない場合のエラーを生成する。
func NewInvalidPlanError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPlan,
		Message:  "Invalid planId",
		Category: CategoryValidation,
		Action:   "Specify a subscription plan id.",
	}
}

// NewGroDeltaExceededError は1回の同期でのgro増加量が上限を超えた場合のエラーを生成する。
func NewGroDeltaExceededError(delta, limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeGroDeltaExceeded,
		Message:  fmt.Sprintf("Security Alert: Gro increase of %d exceeds the per-sync limit of %d", delta, limit),
		Category: CategorySecurity,
		Action:   "Your progress could not be saved. Please keep playing and sync again.",
	}
}

// NewXPDeltaExceededError は1回の同期でのXP増加量が上限を超えた場合のエラーを生成する。
func NewXPDeltaExceededError(delta, limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeXPDeltaExceeded,
		Message:  fmt.Sprintf("Security Alert: XP increase of %d exceeds the per-sync limit of %d", delta, limit),
		Category: CategorySecurity,
		Action:   "Your progress could not be saved. Please keep playing and sync again.",
	}
}

// NewInitialGroExceededError は初回同期のgroがウェルカムボーナス上限を超えた場合のエラーを生成する。
func NewInitialGroExceededError(gro, limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeInitialGroExceeded,
		Message:  fmt.Sprintf("Security Alert: initial Gro %d exceeds the welcome bonus limit of %d", gro, limit),
		Category: CategorySecurity,
		Action:   "Start a new game to receive the welcome bonus.",
	}
}

// NewInitialXPExceededError は初回同期のxpが上限を超えた場合のエラーを生成する。
func NewInitialXPExceededError(xp, limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeInitialXPExceeded,
		Message:  fmt.Sprintf("Security Alert: initial XP %d exceeds the limit of %d", xp, limit),
		Category: CategorySecurity,
		Action:   "Start a new game and sync again.",
	}
}

// NewSyncConflictError は同時同期の再試行が尽きた場合のエラーを生成する。
func NewSyncConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeSyncConflict,
		Message:  "Concurrent sync detected, please retry",
		Category: CategorySystem,
		Action:   "Wait a moment and sync again.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: CategorySystem,
		Action:   "Please try again later.",
	}
}

// NewRateLimitedError はuid単位のリクエスト数上限を超えた場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests, please slow down",
		Category: CategorySystem,
		Action:   "Wait until the time in Retry-After has passed and retry.",
	}
}
