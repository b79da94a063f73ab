package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は収集済みメトリクスから指定名のMetricFamilyを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather returned error: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mf := findMetric(t, reg, name)
	if mf == nil {
		t.Fatalf("metric %q not found", name)
	}
	return mf.GetMetric()[0].GetCounter().GetValue()
}

func TestCollector_RegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// 全メトリクスを一度動かしてからGatherで存在を確認する
	c.RecordClaimSuccess(100)
	c.RecordClaimNoop()
	c.RecordClaimRejected("DEPLETED")
	c.RecordClaimLatency(10 * time.Millisecond)
	c.RecordCompanyCreated()
	c.RecordEmployeeCreated()
	c.SetUnderfundedCompanies(2)

	wantNames := []string{
		"vestry_claim_success_total",
		"vestry_claim_noop_total",
		"vestry_claim_rejected_total",
		"vestry_tokens_released_total",
		"vestry_claim_latency_seconds",
		"vestry_company_created_total",
		"vestry_employee_created_total",
		"vestry_underfunded_companies",
	}
	for _, name := range wantNames {
		if findMetric(t, reg, name) == nil {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestCollector_ClaimSuccessAddsReleasedTokens(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordClaimSuccess(300)
	c.RecordClaimSuccess(200)

	if got := counterValue(t, reg, "vestry_claim_success_total"); got != 2 {
		t.Errorf("claim success total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "vestry_tokens_released_total"); got != 500 {
		t.Errorf("tokens released total = %v, want 500", got)
	}
}

func TestCollector_NoopDoesNotCountAsSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordClaimNoop()
	c.RecordClaimNoop()
	c.RecordClaimSuccess(100)

	if got := counterValue(t, reg, "vestry_claim_noop_total"); got != 2 {
		t.Errorf("claim noop total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "vestry_claim_success_total"); got != 1 {
		t.Errorf("claim success total = %v, want 1", got)
	}
}

func TestCollector_RejectedCountsPerErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordClaimRejected("CLIFF_NOT_PAST")
	c.RecordClaimRejected("CLIFF_NOT_PAST")
	c.RecordClaimRejected("DEPLETED")

	mf := findMetric(t, reg, "vestry_claim_rejected_total")
	if mf == nil {
		t.Fatal("metric vestry_claim_rejected_total not found")
	}

	byCode := map[string]float64{}
	for _, m := range mf.GetMetric() {
		for _, label := range m.GetLabel() {
			if label.GetName() == "code" {
				byCode[label.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}

	if byCode["CLIFF_NOT_PAST"] != 2 {
		t.Errorf("CLIFF_NOT_PAST count = %v, want 2", byCode["CLIFF_NOT_PAST"])
	}
	if byCode["DEPLETED"] != 1 {
		t.Errorf("DEPLETED count = %v, want 1", byCode["DEPLETED"])
	}
}

func TestCollector_UnderfundedGaugeIsSettable(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetUnderfundedCompanies(3)
	c.SetUnderfundedCompanies(1)

	mf := findMetric(t, reg, "vestry_underfunded_companies")
	if mf == nil {
		t.Fatal("metric vestry_underfunded_companies not found")
	}
	if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("underfunded gauge = %v, want 1 (last set value)", got)
	}
}

func TestSetupMetricsRoute_ServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCompanyCreated()

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "vestry_company_created_total 1") {
		t.Errorf("expected vestry_company_created_total in scrape output, got:\n%s", body)
	}
}

func TestSetupMetricsRoute_OtherPathsNotFound(t *testing.T) {
	reg := prometheus.NewRegistry()
	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/other", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
