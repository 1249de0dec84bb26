package profile

import (
	"regexp"
	"time"
)

const day = 24 * time.Hour

// defaultPlanDuration はカタログに無いプランIDに適用する期間。
const defaultPlanDuration = 30 * day

var planDurations = map[string]time.Duration{
	"monthly":   30 * day,
	"quarterly": 90 * day,
	"yearly":    365 * day,
}

// planIDPattern はプランIDとして受け付ける形式。
var planIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// PlanDuration はプランIDに対応する購読期間を返す。
func PlanDuration(planID string) time.Duration {
	if d, ok := planDurations[planID]; ok {
		return d
	}
	return defaultPlanDuration
}

// ValidPlanID はプランIDの形式が正しいかを返す。
func ValidPlanID(planID string) bool {
	return planIDPattern.MatchString(planID)
}
