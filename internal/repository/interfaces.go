// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/grosync/internal/model"
)

// ProfileRepository はプレイヤープロフィールの永続化インターフェース。
// usersテーブルをuidをキーとして読み書きする。
type ProfileRepository interface {
	// FindByUID は指定uidのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUID(ctx context.Context, uid string) (*model.Profile, error)

	// InsertIfAbsent はプロフィールを新規作成する。
	// 同じuidの行が既に存在する場合は何もせずmodel.ErrBalanceConflictを返す。
	InsertIfAbsent(ctx context.Context, profile *model.Profile) error

	// UpdateIfBalance は保存済みのgro/xpがexpectedと一致する場合に限り、
	// プロフィールの可変フィールドとlast_synced_atを上書きする。
	// created_atとプレミアム関連の列は変更しない。
	// 一致しない（または行が消えている）場合はmodel.ErrBalanceConflictを返す。
	UpdateIfBalance(ctx context.Context, profile *model.Profile, expected model.Balance) error

	// UpsertPremium はプレミアム購読を有効化する。行が存在しない場合は作成する。
	// 作成時のlast_synced_atは0とし、未同期の行として扱う。
	UpsertPremium(ctx context.Context, uid, plan string, subscriptionEnd, now int64) error

	// CancelPremium はプレミアム購読を解除する。
	// is_premium=0、subscription_end=0、subscription_plan=NULLにリセットする。
	CancelPremium(ctx context.Context, uid string) error
}
