package profile

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// SyncRequest はPOST /api/users/{uid} のボディ。
// 数値項目は型の誤りを個別のエラーにするため生のJSONのまま受け取る。
type SyncRequest struct {
	Email       string          `json:"email"`
	DisplayName string          `json:"displayName"`
	Level       json.RawMessage `json:"level"`
	XP          json.RawMessage `json:"xp"`
	Gro         json.RawMessage `json:"gro"`
	CurrentLand string          `json:"currentLand"`
	Inventory   json.RawMessage `json:"inventory"`
	GameData    json.RawMessage `json:"gameData"`
	CreatedAt   json.RawMessage `json:"createdAt"`
}

// PurchaseRequest はPOST /api/users/{uid}/purchase のボディ。
type PurchaseRequest struct {
	PlanID string `json:"planId"`
}

// decodeNumber はJSONの数値リテラルをfloat64として取り出す。数値でなければfalse。
func decodeNumber(raw json.RawMessage) (json.Number, bool) {
	if len(raw) == 0 {
		return "", false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	n, ok := v.(json.Number)
	return n, ok
}

// parseCount はgro/xpのような非負の整数値を取り出す。
// 100.0や1e3のように整数値を表す数値も受け付ける。
func parseCount(raw json.RawMessage) (int64, bool) {
	n, ok := decodeNumber(raw)
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return i, i >= 0
	}
	// float64(math.MaxInt64)は2^63に丸められるため、2^63以上はint64に収まらない
	f, err := n.Float64()
	if err != nil || f < 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// parseLevel はレベルを取り出す。数値でない、または1未満の場合は1とする。
func parseLevel(raw json.RawMessage) int {
	n, ok := decodeNumber(raw)
	if !ok {
		return 1
	}
	f, err := n.Float64()
	if err != nil || f < 1 || f > math.MaxInt32 {
		return 1
	}
	return int(f)
}

// parseCreatedAt はクライアントの作成日時をエポックミリ秒で返す。
// エポックミリ秒の数値かRFC 3339文字列を受け付け、それ以外はfallbackを返す。
func parseCreatedAt(raw json.RawMessage, fallback int64) int64 {
	if n, ok := decodeNumber(raw); ok {
		if f, err := n.Float64(); err == nil && f > 0 && f <= float64(fallback) {
			return int64(f)
		}
		return fallback
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fallback
	}
	if ms := t.UnixMilli(); ms > 0 && ms <= fallback {
		return ms
	}
	return fallback
}

// isNull はフィールドが省略またはnullかを返す。
func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// parseInventory はインベントリを配列として取り出す。省略とnullは空配列。
func parseInventory(raw json.RawMessage) ([]any, bool) {
	if isNull(raw) {
		return []any{}, true
	}
	var inventory []any
	if err := json.Unmarshal(raw, &inventory); err != nil {
		return nil, false
	}
	return inventory, true
}

// parseGameData はゲームデータをオブジェクトとして取り出す。省略とnullは空オブジェクト。
func parseGameData(raw json.RawMessage) (map[string]any, bool) {
	if isNull(raw) {
		return map[string]any{}, true
	}
	var gameData map[string]any
	if err := json.Unmarshal(raw, &gameData); err != nil {
		return nil, false
	}
	return gameData, true
}
