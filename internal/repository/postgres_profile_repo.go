package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hitoshi/grosync/internal/model"
)

const profileColumns = `uid, email, display_name, level, xp, gro, current_land, inventory, game_data,
	created_at, last_synced_at, is_premium, subscription_end, subscription_plan`

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUID は指定uidのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUID(ctx context.Context, uid string) (*model.Profile, error) {
	p := &model.Profile{}
	var inventory, gameData string
	var isPremium int
	var plan sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM users WHERE uid = $1`,
		uid,
	).Scan(
		&p.UID, &p.Email, &p.DisplayName,
		&p.Level, &p.XP, &p.Gro,
		&p.CurrentLand, &inventory, &gameData,
		&p.CreatedAt, &p.LastSyncedAt,
		&isPremium, &p.SubscriptionEnd, &plan,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by uid: %w", err)
	}

	p.Inventory = DecodeInventory(uid, inventory)
	p.GameData = DecodeGameData(uid, gameData)
	p.IsPremium = isPremium == 1
	if plan.Valid {
		p.SubscriptionPlan = &plan.String
	}

	return p, nil
}

// InsertIfAbsent はプロフィールを新規作成する。
// ON CONFLICT DO NOTHINGで同時作成を検出し、負けた側にはErrBalanceConflictを返す。
func (r *PostgresProfileRepo) InsertIfAbsent(ctx context.Context, p *model.Profile) error {
	inventory, gameData, err := encodeBlobs(p)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (uid, email, display_name, level, xp, gro, current_land, inventory, game_data, created_at, last_synced_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (uid) DO NOTHING`,
		p.UID, p.Email, p.DisplayName,
		p.Level, p.XP, p.Gro,
		p.CurrentLand, inventory, gameData,
		p.CreatedAt, p.LastSyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	return requireOneRow(result)
}

// UpdateIfBalance は保存済みのgro/xpがexpectedと一致する場合のみ可変フィールドを更新する。
func (r *PostgresProfileRepo) UpdateIfBalance(ctx context.Context, p *model.Profile, expected model.Balance) error {
	inventory, gameData, err := encodeBlobs(p)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET
		    email = $2, display_name = $3, level = $4, xp = $5, gro = $6,
		    current_land = $7, inventory = $8, game_data = $9, last_synced_at = $10
		 WHERE uid = $1 AND gro = $11 AND xp = $12`,
		p.UID, p.Email, p.DisplayName,
		p.Level, p.XP, p.Gro,
		p.CurrentLand, inventory, gameData,
		p.LastSyncedAt,
		expected.Gro, expected.XP,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	return requireOneRow(result)
}

// UpsertPremium はプレミアム購読を有効化する。行が存在しない場合は作成する。
func (r *PostgresProfileRepo) UpsertPremium(ctx context.Context, uid, plan string, subscriptionEnd, now int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (uid, is_premium, subscription_plan, subscription_end, created_at, last_synced_at)
		 VALUES ($1, 1, $2, $3, $4, 0)
		 ON CONFLICT (uid) DO UPDATE SET
		     is_premium = 1,
		     subscription_plan = EXCLUDED.subscription_plan,
		     subscription_end = EXCLUDED.subscription_end`,
		uid, plan, subscriptionEnd, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert premium subscription: %w", err)
	}
	return nil
}

// CancelPremium はプレミアム購読を解除する。行が存在しない場合は何もしない。
func (r *PostgresProfileRepo) CancelPremium(ctx context.Context, uid string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_premium = 0, subscription_end = 0, subscription_plan = NULL
		 WHERE uid = $1`,
		uid,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel premium subscription: %w", err)
	}
	return nil
}

// requireOneRow は条件付き書き込みが1行に作用したことを確認する。
// 0行の場合は同時同期に負けたとみなしErrBalanceConflictを返す。
func requireOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return model.ErrBalanceConflict
	}
	return nil
}

func encodeBlobs(p *model.Profile) (string, string, error) {
	inventory, err := EncodeInventory(p.Inventory)
	if err != nil {
		return "", "", err
	}
	gameData, err := EncodeGameData(p.GameData)
	if err != nil {
		return "", "", err
	}
	return inventory, gameData, nil
}

// EncodeInventory はインベントリをテキスト列用のJSONにシリアライズする。nilは空配列になる。
func EncodeInventory(inventory []any) (string, error) {
	if inventory == nil {
		inventory = []any{}
	}
	b, err := json.Marshal(inventory)
	if err != nil {
		return "", fmt.Errorf("failed to serialize inventory: %w", err)
	}
	return string(b), nil
}

// EncodeGameData はゲームデータをテキスト列用のJSONにシリアライズする。nilは空オブジェクトになる。
func EncodeGameData(gameData map[string]any) (string, error) {
	if gameData == nil {
		gameData = map[string]any{}
	}
	b, err := json.Marshal(gameData)
	if err != nil {
		return "", fmt.Errorf("failed to serialize game data: %w", err)
	}
	return string(b), nil
}

// DecodeInventory はテキスト列のインベントリを復元する。
// 壊れたJSONは空配列として扱い、警告ログを出力する。
func DecodeInventory(uid, raw string) []any {
	inventory := []any{}
	if raw == "" {
		return inventory
	}
	if err := json.Unmarshal([]byte(raw), &inventory); err != nil || inventory == nil {
		slog.Warn("stored inventory is not a JSON array",
			slog.String("uid", uid),
		)
		return []any{}
	}
	return inventory
}

// DecodeGameData はテキスト列のゲームデータを復元する。
// 壊れたJSONは空オブジェクトとして扱い、警告ログを出力する。
func DecodeGameData(uid, raw string) map[string]any {
	gameData := map[string]any{}
	if raw == "" {
		return gameData
	}
	if err := json.Unmarshal([]byte(raw), &gameData); err != nil || gameData == nil {
		slog.Warn("stored game_data is not a JSON object",
			slog.String("uid", uid),
		)
		return map[string]any{}
	}
	return gameData
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
