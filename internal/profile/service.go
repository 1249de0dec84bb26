// Package profile はプレイヤープロフィールの取得・同期とプレミアム購読を扱う。
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/grosync/internal/metrics"
	"github.com/hitoshi/grosync/internal/model"
	"github.com/hitoshi/grosync/internal/repository"
	"github.com/hitoshi/grosync/internal/security"
)

// maxSyncAttempts は同時同期で書き込みが競合した場合の最大試行回数。
const maxSyncAttempts = 3

// テキスト項目の最大文字数（ルーン数）
const (
	maxEmailLength       = 320
	maxDisplayNameLength = 100
	maxLandLength        = 255
)

// SyncResult は同期成功時の結果。
type SyncResult struct {
	SyncedAt int64
	Created  bool
}

// PurchaseResult は購読購入時の結果。
type PurchaseResult struct {
	Plan            string
	SubscriptionEnd int64
}

// Service はプロフィールのビジネスロジックを提供する。
type Service struct {
	repo      repository.ProfileRepository
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	limits    Limits
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.ProfileRepository,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
	limits Limits,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   collector,
		limits:    limits,
		now:       time.Now,
	}
}

// Get はuidのプロフィールを返す。存在しない場合はnilを返す。
func (s *Service) Get(ctx context.Context, uid string) (*model.Profile, error) {
	p, err := s.repo.FindByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return p, nil
}

// Sync はクライアントの状態を検査してプロフィールに保存する。
// gro/xpの増加量が上限を超える場合は何も書き込まずにエラーを返す。
// 同一uidへの同時同期で競合した場合は最新の値を読み直して再検査する。
func (s *Service) Sync(ctx context.Context, uid string, req *SyncRequest) (*SyncResult, error) {
	next, err := s.buildProfile(uid, req)
	if err != nil {
		s.metrics.RecordSync(metrics.SyncRejected)
		return nil, err
	}

	for attempt := 1; attempt <= maxSyncAttempts; attempt++ {
		current, err := s.repo.FindByUID(ctx, uid)
		if err != nil {
			s.metrics.RecordSync(metrics.SyncError)
			return nil, fmt.Errorf("failed to find profile: %w", err)
		}

		var prev *model.Balance
		if current != nil && current.LastSyncedAt != 0 {
			b := current.Balance()
			prev = &b
		}
		if err := CheckDelta(prev, next.Balance(), s.limits); err != nil {
			var apiErr *model.APIError
			if errors.As(err, &apiErr) {
				s.metrics.RecordAntiCheatRejection(apiErr.Code)
			}
			s.metrics.RecordSync(metrics.SyncRejected)
			slog.Warn("anti-cheat rejected sync",
				slog.String("uid", uid),
				slog.Int64("gro", next.Gro),
				slog.Int64("xp", next.XP),
				slog.String("error", err.Error()),
			)
			return nil, err
		}

		now := s.now().UnixMilli()
		next.LastSyncedAt = now

		if current == nil {
			next.CreatedAt = parseCreatedAt(req.CreatedAt, now)
			err = s.repo.InsertIfAbsent(ctx, next)
		} else {
			next.CreatedAt = current.CreatedAt
			err = s.repo.UpdateIfBalance(ctx, next, current.Balance())
		}

		if err == nil {
			if current == nil {
				s.metrics.RecordSync(metrics.SyncCreated)
			} else {
				s.metrics.RecordSync(metrics.SyncUpdated)
			}
			return &SyncResult{SyncedAt: now, Created: current == nil}, nil
		}
		if !errors.Is(err, model.ErrBalanceConflict) {
			s.metrics.RecordSync(metrics.SyncError)
			return nil, fmt.Errorf("failed to save profile: %w", err)
		}

		slog.Info("sync conflict detected",
			slog.String("uid", uid),
			slog.Int("attempt", attempt),
		)
	}

	s.metrics.RecordSync(metrics.SyncConflict)
	return nil, model.NewSyncConflictError()
}

// buildProfile はリクエストを検証して保存するプロフィールを組み立てる。
func (s *Service) buildProfile(uid string, req *SyncRequest) (*model.Profile, error) {
	gro, ok := parseCount(req.Gro)
	if !ok {
		return nil, model.NewInvalidGroError()
	}
	xp, ok := parseCount(req.XP)
	if !ok {
		return nil, model.NewInvalidXPError()
	}
	inventory, ok := parseInventory(req.Inventory)
	if !ok {
		return nil, model.NewInvalidBodyError("inventory must be an array")
	}
	gameData, ok := parseGameData(req.GameData)
	if !ok {
		return nil, model.NewInvalidBodyError("gameData must be an object")
	}

	land := truncate(s.sanitizer.SanitizeText(req.CurrentLand), maxLandLength)
	if land == "" {
		land = model.DefaultLand
	}

	return &model.Profile{
		UID:         uid,
		Email:       truncate(s.sanitizer.SanitizeText(req.Email), maxEmailLength),
		DisplayName: truncate(s.sanitizer.SanitizeText(req.DisplayName), maxDisplayNameLength),
		Level:       parseLevel(req.Level),
		XP:          xp,
		Gro:         gro,
		CurrentLand: land,
		Inventory:   inventory,
		GameData:    gameData,
	}, nil
}

// Purchase はプランの購読を有効にする。
// 有効な購読が残っている場合は現在の終了日時から延長する。
func (s *Service) Purchase(ctx context.Context, uid, planID string) (*PurchaseResult, error) {
	planID = strings.TrimSpace(planID)
	if !ValidPlanID(planID) {
		return nil, model.NewInvalidPlanError()
	}

	current, err := s.repo.FindByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	now := s.now().UnixMilli()
	start := now
	if current != nil && current.PremiumActive(now) {
		start = current.SubscriptionEnd
	}
	end := start + PlanDuration(planID).Milliseconds()

	if err := s.repo.UpsertPremium(ctx, uid, planID, end, now); err != nil {
		return nil, fmt.Errorf("failed to activate premium: %w", err)
	}

	s.metrics.RecordPremiumEvent(metrics.PremiumPurchased, 1)
	slog.Info("premium purchased",
		slog.String("uid", uid),
		slog.String("plan", planID),
		slog.Int64("subscription_end", end),
	)

	return &PurchaseResult{Plan: planID, SubscriptionEnd: end}, nil
}

// Cancel はプレミアム購読を解除する。プロフィールが無い場合も成功とする。
func (s *Service) Cancel(ctx context.Context, uid string) error {
	if err := s.repo.CancelPremium(ctx, uid); err != nil {
		return fmt.Errorf("failed to cancel premium: %w", err)
	}

	s.metrics.RecordPremiumEvent(metrics.PremiumCancelled, 1)
	slog.Info("premium cancelled", slog.String("uid", uid))
	return nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
