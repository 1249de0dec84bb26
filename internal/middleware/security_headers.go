package middleware

import "net/http"

// apiSecurityHeaders はJSONのみを返すAPI向けのレスポンスヘッダー。
// ブラウザにレスポンスを文書として解釈させず、利用者ごとのプロフィールを中間キャッシュにも残さない。
var apiSecurityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
	"Referrer-Policy":           "no-referrer",
	"Cache-Control":             "no-store",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
}

// NewSecurityHeadersMiddleware はapiSecurityHeadersを全レスポンスに付与するミドルウェアを返す。
// CORSヘッダーはNewCORSMiddlewareが付与するため、ここではオリジン関連のヘッダーを扱わない。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for name, value := range apiSecurityHeaders {
				w.Header().Set(name, value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
