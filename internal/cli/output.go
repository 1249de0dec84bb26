package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ProfileResult はGET /api/users/{uid} のレスポンス。
type ProfileResult struct {
	Found bool         `json:"found"`
	Data  *ProfileData `json:"data,omitempty"`
}

// ProfileData はプロフィール1行分。
type ProfileData struct {
	UID              string         `json:"uid"`
	Email            string         `json:"email"`
	DisplayName      string         `json:"display_name"`
	Level            int            `json:"level"`
	XP               int64          `json:"xp"`
	Gro              int64          `json:"gro"`
	CurrentLand      string         `json:"current_land"`
	Inventory        []any          `json:"inventory"`
	GameData         map[string]any `json:"game_data"`
	CreatedAt        int64          `json:"created_at"`
	LastSyncedAt     int64          `json:"last_synced_at"`
	IsPremium        int            `json:"is_premium"`
	SubscriptionEnd  int64          `json:"subscription_end"`
	SubscriptionPlan *string        `json:"subscription_plan"`
}

// SyncResult はPOST /api/users/{uid} のレスポンス。
type SyncResult struct {
	Success  bool  `json:"success"`
	SyncedAt int64 `json:"syncedAt"`
}

// PurchaseResult はPOST /api/users/{uid}/purchase のレスポンス。
type PurchaseResult struct {
	Success         bool   `json:"success"`
	IsPremium       int    `json:"is_premium"`
	Plan            string `json:"plan"`
	SubscriptionEnd int64  `json:"subscription_end"`
}

// CancelResult はPOST /api/users/{uid}/cancel のレスポンス。
type CancelResult struct {
	Success   bool `json:"success"`
	IsPremium int  `json:"is_premium"`
}

// HealthResult はGET /health のレスポンス。
type HealthResult struct {
	Status string `json:"status"`
}

// Output は設定された形式で結果を出力する。
type Output struct {
	w      io.Writer
	format string
}

// NewOutput はOutputを生成する。
func NewOutput(w io.Writer, format string) *Output {
	return &Output{w: w, format: format}
}

// Print はdataを出力する。
func (o *Output) Print(data any) {
	if o.format == "json" {
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(data)
		return
	}

	switch v := data.(type) {
	case ProfileResult:
		o.printProfile(v)
	case SyncResult:
		fmt.Fprintf(o.w, "Synced at %s\n", formatMillis(v.SyncedAt))
	case PurchaseResult:
		fmt.Fprintf(o.w, "Premium active: plan=%s until %s\n", v.Plan, formatMillis(v.SubscriptionEnd))
	case CancelResult:
		fmt.Fprintln(o.w, "Premium cancelled")
	case HealthResult:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	default:
		fmt.Fprintf(o.w, "%+v\n", v)
	}
}

func (o *Output) printProfile(p ProfileResult) {
	if !p.Found || p.Data == nil {
		fmt.Fprintln(o.w, "Profile not found")
		return
	}

	d := p.Data
	fmt.Fprintf(o.w, "UID:          %s\n", d.UID)
	fmt.Fprintf(o.w, "Display name: %s\n", d.DisplayName)
	fmt.Fprintf(o.w, "Email:        %s\n", d.Email)
	fmt.Fprintf(o.w, "Level:        %d\n", d.Level)
	fmt.Fprintf(o.w, "XP:           %d\n", d.XP)
	fmt.Fprintf(o.w, "Gro:          %d\n", d.Gro)
	fmt.Fprintf(o.w, "Land:         %s\n", d.CurrentLand)
	fmt.Fprintf(o.w, "Inventory:    %d items\n", len(d.Inventory))
	fmt.Fprintf(o.w, "Last synced:  %s\n", formatMillis(d.LastSyncedAt))
	if d.IsPremium == 1 {
		plan := ""
		if d.SubscriptionPlan != nil {
			plan = *d.SubscriptionPlan
		}
		fmt.Fprintf(o.w, "Premium:      %s until %s\n", plan, formatMillis(d.SubscriptionEnd))
	} else {
		fmt.Fprintln(o.w, "Premium:      no")
	}
}

// formatMillis はエポックミリ秒をRFC 3339で表示する。0は"-"。
func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
