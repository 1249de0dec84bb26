package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名・ラベル値のメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name, labelValue string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelValue == "" {
				return m
			}
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == labelValue {
					return m
				}
			}
		}
	}
	t.Fatalf("metric %s{%s} not found", name, labelValue)
	return nil
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordSync_CountsByResult は同期結果がラベル別に集計されることを検証する。
func TestRecordSync_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSync(SyncCreated)
	c.RecordSync(SyncUpdated)
	c.RecordSync(SyncUpdated)

	if v := findMetric(t, reg, "grosync_sync_total", SyncUpdated).GetCounter().GetValue(); v != 2 {
		t.Errorf("sync_total{updated} = %v, want 2", v)
	}
	if v := findMetric(t, reg, "grosync_sync_total", SyncCreated).GetCounter().GetValue(); v != 1 {
		t.Errorf("sync_total{created} = %v, want 1", v)
	}
}

func TestRecordAntiCheatRejection_CountsByRule(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAntiCheatRejection("gro_delta")

	if v := findMetric(t, reg, "grosync_anticheat_rejections_total", "gro_delta").GetCounter().GetValue(); v != 1 {
		t.Errorf("anticheat{gro_delta} = %v, want 1", v)
	}
}

func TestRecordJWKSFetch_SuccessAndFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordJWKSFetch(nil, 100*time.Millisecond)
	c.RecordJWKSFetch(errors.New("timeout"), time.Second)

	if v := findMetric(t, reg, "grosync_jwks_fetch_total", "success").GetCounter().GetValue(); v != 1 {
		t.Errorf("jwks_fetch{success} = %v, want 1", v)
	}
	if v := findMetric(t, reg, "grosync_jwks_fetch_total", "failure").GetCounter().GetValue(); v != 1 {
		t.Errorf("jwks_fetch{failure} = %v, want 1", v)
	}
	h := findMetric(t, reg, "grosync_jwks_fetch_latency_seconds", "").GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("latency sample count = %d, want 2", h.GetSampleCount())
	}
}

func TestRecordPremiumEvent_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPremiumEvent(PremiumExpired, 3)
	c.RecordPremiumEvent(PremiumPurchased, 1)

	if v := findMetric(t, reg, "grosync_premium_events_total", PremiumExpired).GetCounter().GetValue(); v != 3 {
		t.Errorf("premium{expired} = %v, want 3", v)
	}
}

func TestRecordPanic_CountsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPanic("/api/users/{uid}")
	c.RecordPanic("/api/users/{uid}")

	if v := findMetric(t, reg, "grosync_http_panics_total", "/api/users/{uid}").GetCounter().GetValue(); v != 2 {
		t.Errorf("panics{/api/users/{uid}} = %v, want 2", v)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsがPrometheus形式で返ることを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSync(SyncUpdated)
	c.RecordAntiCheatRejection("xp_delta")
	c.RecordTokenRejected("uid_mismatch")
	c.RecordJWKSFetch(nil, 10*time.Millisecond)
	c.RecordPremiumEvent(PremiumCancelled, 1)
	c.RecordPanic("/api/users/{uid}")

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, metric := range []string{
		"grosync_sync_total",
		"grosync_anticheat_rejections_total",
		"grosync_token_rejected_total",
		"grosync_jwks_fetch_total",
		"grosync_jwks_fetch_latency_seconds",
		"grosync_premium_events_total",
		"grosync_http_panics_total",
	} {
		if !strings.Contains(string(body), metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	var _ MetricsCollector = NewCollector(prometheus.NewRegistry())
	var _ MetricsCollector = Nop{}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordSync(SyncCreated)
	c2.RecordSync(SyncCreated)
	c2.RecordSync(SyncCreated)

	if v := findMetric(t, reg1, "grosync_sync_total", SyncCreated).GetCounter().GetValue(); v != 1 {
		t.Errorf("reg1 sync = %v, want 1", v)
	}
	if v := findMetric(t, reg2, "grosync_sync_total", SyncCreated).GetCounter().GetValue(); v != 2 {
		t.Errorf("reg2 sync = %v, want 2", v)
	}
}
