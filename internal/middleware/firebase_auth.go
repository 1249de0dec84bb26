package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/grosync/internal/auth"
	"github.com/hitoshi/grosync/internal/metrics"
	"github.com/hitoshi/grosync/internal/model"
)

const bearerPrefix = "Bearer "

// NewFirebaseAuthMiddleware はAuthorizationヘッダーのFirebase ID トークンを検証し、
// トークンのsubがパスの{uid}と一致する場合のみ次のハンドラーへ渡す。
// 一致したUIDはコンテキストに注入する。
//
//   - ヘッダー欠落またはBearer形式でない: 401
//   - 署名・期限・iss・audなどの検証失敗: 401
//   - subと{uid}の不一致: 403
func NewFirebaseAuthMiddleware(verifier auth.TokenVerifier, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.Nop{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				collector.RecordTokenRejected("missing_header")
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewMissingAuthorizationError())
				return
			}
			rawToken := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))

			claims, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				collector.RecordTokenRejected("invalid_token")
				slog.Warn("token verification failed",
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError(err.Error()))
				return
			}

			uid := chi.URLParam(r, "uid")
			if claims.Subject != uid {
				collector.RecordTokenRejected("uid_mismatch")
				slog.Warn("uid mismatch",
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("path_uid", uid),
					slog.String("token_uid", claims.Subject),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewUIDMismatchError())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUID(r.Context(), uid)))
		})
	}
}
