// Package model はドメインモデルを定義する。
package model

import "errors"

// DefaultLand はcurrent_landが未指定の場合に使用するワールド。
const DefaultLand = "default_ground"

// ErrBalanceConflict は比較対象のgro/xpが書き込み時点で変化していたことを表す。
// 同一uidに対する同時同期で後から書き込もうとした側が受け取る。
var ErrBalanceConflict = errors.New("stored balance changed during sync")

// Balance はアンチチートの差分検査の対象となる通貨とXPの組。
type Balance struct {
	Gro int64
	XP  int64
}

// Profile はプレイヤー1人分のプロフィール行を表す。
// 時刻はすべてエポックミリ秒で保持する。
type Profile struct {
	UID         string
	Email       string
	DisplayName string

	Level int
	XP    int64
	Gro   int64

	CurrentLand string

	// Inventory はアイテムIDの順序付きリスト。保存時はJSONテキストにシリアライズする。
	Inventory []any
	// GameData は任意のキーバリュー。保存時はJSONテキストにシリアライズする。
	GameData map[string]any

	CreatedAt    int64
	LastSyncedAt int64

	IsPremium        bool
	SubscriptionEnd  int64
	SubscriptionPlan *string
}

// Balance はプロフィールの現在のgro/xpを返す。
func (p *Profile) Balance() Balance {
	return Balance{Gro: p.Gro, XP: p.XP}
}

// PremiumActive は指定時刻においてプレミアム期間が有効かを返す。
func (p *Profile) PremiumActive(nowMillis int64) bool {
	return p.IsPremium && p.SubscriptionEnd > nowMillis
}
