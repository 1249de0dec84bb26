// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	uidContextKey       = contextKey("uid")
	requestIDContextKey = contextKey("request_id")
)

// UIDFromContext は認証済みのFirebase UIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UIDFromContext(ctx context.Context) (string, error) {
	uid, ok := ctx.Value(uidContextKey).(string)
	if !ok || uid == "" {
		return "", fmt.Errorf("uid not found in context")
	}
	return uid, nil
}

// ContextWithUID はコンテキストにUIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, uidContextKey, uid)
}

// RequestIDFromContext はリクエストIDを返す。未設定の場合は空文字列。
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
