package profile

import "github.com/hitoshi/grosync/internal/model"

// Limits は1回の同期で許容する増加量と、初回同期で許容する初期値の上限。
// 0以下の値はその規則を無効にする。
type Limits struct {
	MaxGroDelta   int64
	MaxXPDelta    int64
	MaxInitialGro int64
	MaxInitialXP  int64
}

// DefaultLimits は既定の上限を返す。初期XPの上限は設けない。
func DefaultLimits() Limits {
	return Limits{
		MaxGroDelta:   3000,
		MaxXPDelta:    1000,
		MaxInitialGro: 10000,
	}
}

// CheckDelta は保存済みの値prevから新しい値nextへの変化を検査する。
// prevがnilの場合は初回同期として初期値の上限のみを検査する。
// 減少（消費）はどれだけ大きくても許容する。
// 違反時はカテゴリsecurityの*model.APIErrorを返す。
func CheckDelta(prev *model.Balance, next model.Balance, limits Limits) error {
	if prev == nil {
		if limits.MaxInitialGro > 0 && next.Gro > limits.MaxInitialGro {
			return model.NewInitialGroExceededError(next.Gro, limits.MaxInitialGro)
		}
		if limits.MaxInitialXP > 0 && next.XP > limits.MaxInitialXP {
			return model.NewInitialXPExceededError(next.XP, limits.MaxInitialXP)
		}
		return nil
	}

	if delta := next.Gro - prev.Gro; limits.MaxGroDelta > 0 && delta > limits.MaxGroDelta {
		return model.NewGroDeltaExceededError(delta, limits.MaxGroDelta)
	}
	if delta := next.XP - prev.XP; limits.MaxXPDelta > 0 && delta > limits.MaxXPDelta {
		return model.NewXPDeltaExceededError(delta, limits.MaxXPDelta)
	}
	return nil
}
